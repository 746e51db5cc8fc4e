package computation

import (
	"fmt"

	"github.com/samber/lo"
)

// CheckState is the derived state of a category checkbox
type CheckState int

const (
	Unchecked CheckState = iota
	Indeterminate
	Checked
)

func (s CheckState) String() string {
	switch s {
	case Checked:
		return "checked"
	case Indeterminate:
		return "indeterminate"
	default:
		return "unchecked"
	}
}

// MarshalText encodes the state by name
func (s CheckState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Selection is a set of selected item names over a catalog. The zero value is not
// usable; create one with NewSelection. Selection is not safe for concurrent use.
type Selection struct {
	catalog *Catalog
	items   []string
}

// NewSelection returns an empty selection over catalog
func NewSelection(catalog *Catalog) *Selection {
	return &Selection{catalog: catalog}
}

// Toggle adds name when absent and removes it when present
func (s *Selection) Toggle(name string) error {
	if _, ok := s.catalog.Item(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	if lo.Contains(s.items, name) {
		s.items = lo.Without(s.items, name)
	} else {
		s.items = append(s.items, name)
	}
	return nil
}

// SetCategory selects (checked) or deselects every item of a category
func (s *Selection) SetCategory(category string, checked bool) error {
	names, err := s.catalog.ItemNames(category)
	if err != nil {
		return fmt.Errorf("%w: %q", err, category)
	}
	if checked {
		s.items = lo.Union(s.items, names)
	} else {
		s.items = lo.Without(s.items, names...)
	}
	return nil
}

// ToggleCategory checks a category unless it is already fully checked
func (s *Selection) ToggleCategory(category string) error {
	state, err := s.CategoryState(category)
	if err != nil {
		return err
	}
	return s.SetCategory(category, state != Checked)
}

// CategoryState derives the checkbox state from the selected items
func (s *Selection) CategoryState(category string) (CheckState, error) {
	names, err := s.catalog.ItemNames(category)
	if err != nil {
		return Unchecked, fmt.Errorf("%w: %q", err, category)
	}
	switch {
	case len(names) > 0 && lo.Every(s.items, names):
		return Checked, nil
	case lo.Some(s.items, names):
		return Indeterminate, nil
	default:
		return Unchecked, nil
	}
}

// FullySelected reports whether every item of category is selected
func (s *Selection) FullySelected(category string) bool {
	state, err := s.CategoryState(category)
	return err == nil && state == Checked
}

// Contains reports whether name is selected
func (s *Selection) Contains(name string) bool {
	return lo.Contains(s.items, name)
}

// Len returns the number of selected items
func (s *Selection) Len() int {
	return len(s.items)
}

// Items returns the selected names in catalog order
func (s *Selection) Items() []string {
	out := make([]string, 0, len(s.items))
	for _, cat := range s.catalog.categories {
		for _, item := range cat.Items {
			if lo.Contains(s.items, item.Name) {
				out = append(out, item.Name)
			}
		}
	}
	return out
}

// Clear deselects everything
func (s *Selection) Clear() {
	s.items = nil
}
