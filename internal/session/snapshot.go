package session

import (
	"imagery-compare/internal/changedetect"
	"imagery-compare/internal/computation"
	"imagery-compare/internal/geo"
	"imagery-compare/internal/validation"
)

// Snapshot is a copy of the whole session handed to the UI.
// Descriptor pointers are shared with the controller and must not be modified.
type Snapshot struct {
	Version     uint64                        `json:"version"`
	Status      Status                        `json:"status"`
	Loading     bool                          `json:"loading"`
	Input       validation.RawInput           `json:"input"`
	FieldErrors validation.FieldErrors        `json:"fieldErrors,omitempty"`
	Error       string                        `json:"error,omitempty"`
	Before      *changedetect.ImageDescriptor `json:"image1,omitempty"`
	After       *changedetect.ImageDescriptor `json:"image2,omitempty"`
	Marker      *geo.Coordinate               `json:"marker,omitempty"`
	Selection   []string                      `json:"selection"`
	Categories  []CategoryView                `json:"categories"`
	Computation computation.Status            `json:"computation"`
	Results     computation.ResultSet         `json:"results,omitempty"`

	// Acquisition dates of the images formatted for display
	BeforeAcquired string `json:"image1Acquired,omitempty"`
	AfterAcquired  string `json:"image2Acquired,omitempty"`
}

// CategoryView is one category checkbox with its items
type CategoryView struct {
	Name    string                 `json:"name"`
	State   computation.CheckState `json:"state"`
	Checked bool                   `json:"checked"`
	Items   []ItemView             `json:"items"`
}

// ItemView is one item checkbox
type ItemView struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

func (c *Controller) snapshotLocked() Snapshot {
	st := &c.st

	snap := Snapshot{
		Version:   c.version,
		Status:    st.status,
		Loading:   st.status == StatusLoading,
		Input:     st.input,
		Error:     st.errText,
		Before:    st.before,
		After:     st.after,
		Selection: st.selection.Items(),
	}

	if len(st.fieldErrors) > 0 {
		snap.FieldErrors = make(validation.FieldErrors, len(st.fieldErrors))
		for k, v := range st.fieldErrors {
			snap.FieldErrors[k] = v
		}
	}
	if st.before != nil {
		snap.BeforeAcquired = st.before.AcquiredLabel()
	}
	if st.after != nil {
		snap.AfterAcquired = st.after.AcquiredLabel()
	}
	if st.marker != nil {
		m := *st.marker
		snap.Marker = &m
	}

	for _, cat := range c.catalog.Categories() {
		state, _ := st.selection.CategoryState(cat.Name)
		view := CategoryView{
			Name:    cat.Name,
			State:   state,
			Checked: state == computation.Checked,
			Items:   make([]ItemView, len(cat.Items)),
		}
		for i, item := range cat.Items {
			view.Items[i] = ItemView{Name: item.Name, Selected: st.selection.Contains(item.Name)}
		}
		snap.Categories = append(snap.Categories, view)
	}

	switch {
	case c.runner.Status() == computation.StatusRunning:
		snap.Computation = computation.StatusRunning
	case st.results != nil:
		snap.Computation = computation.StatusDone
	default:
		snap.Computation = computation.StatusIdle
	}
	if st.results != nil {
		snap.Results = make(computation.ResultSet, len(st.results))
		for k, v := range st.results {
			snap.Results[k] = v
		}
	}

	return snap
}
