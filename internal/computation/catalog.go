// Package computation holds the categorized index catalog, the multi-select model over
// it and the runner that turns a selection into a result set.
package computation

import "errors"

var (
	ErrUnknownItem     = errors.New("unknown computation item")
	ErrUnknownCategory = errors.New("unknown computation category")
)

// ResultKind tells how an item's value is produced
type ResultKind int

const (
	// ResultNumeric is a uniform sample in [Low, High] with 4 decimals
	ResultNumeric ResultKind = iota
	// ResultLabel is one of Labels
	ResultLabel
	// ResultPercent is a sampled percentage in [Low, High] put into Template
	ResultPercent
)

// Item is one selectable computation
type Item struct {
	Name     string     `json:"name"`
	Key      string     `json:"key"` // Result key; several items may share one
	Kind     ResultKind `json:"kind"`
	Low      float64    `json:"low,omitempty"`
	High     float64    `json:"high,omitempty"`
	Labels   []string   `json:"labels,omitempty"`
	Template string     `json:"template,omitempty"`
}

// Category groups items under one checkbox
type Category struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// Catalog is an ordered, read-only list of categories
type Catalog struct {
	categories []Category
	items      map[string]Item
	owner      map[string]string // item name -> category name
}

// NewCatalog indexes categories. Item names must be unique.
func NewCatalog(categories []Category) *Catalog {
	c := &Catalog{
		categories: categories,
		items:      make(map[string]Item),
		owner:      make(map[string]string),
	}
	for _, cat := range categories {
		for _, item := range cat.Items {
			c.items[item.Name] = item
			c.owner[item.Name] = cat.Name
		}
	}
	return c
}

// Categories returns the categories in display order
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Item looks up an item by name
func (c *Catalog) Item(name string) (Item, bool) {
	item, ok := c.items[name]
	return item, ok
}

// Category looks up a category by name
func (c *Catalog) Category(name string) (Category, bool) {
	for _, cat := range c.categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

// ItemNames returns the names of a category's items in order
func (c *Catalog) ItemNames(category string) ([]string, error) {
	cat, ok := c.Category(category)
	if !ok {
		return nil, ErrUnknownCategory
	}
	names := make([]string, len(cat.Items))
	for i, item := range cat.Items {
		names[i] = item.Name
	}
	return names, nil
}

// Len returns the number of items
func (c *Catalog) Len() int {
	return len(c.items)
}

// DefaultCatalog is the fixed catalog shown next to a loaded comparison
var DefaultCatalog = NewCatalog([]Category{
	{
		Name: "Vegetation Analysis",
		Items: []Item{
			{Name: "NDVI (Normalized Difference Vegetation Index)", Key: "NDVI", Kind: ResultNumeric, Low: -1, High: 1},
			{Name: "EVI (Enhanced Vegetation Index)", Key: "EVI", Kind: ResultNumeric, Low: -1, High: 1},
			{Name: "SAVI (Soil Adjusted Vegetation Index)", Key: "SAVI", Kind: ResultNumeric, Low: -1.5, High: 1.5},
			{Name: "Vegetation Health Assessment", Key: "Vegetation Health", Kind: ResultLabel, Labels: []string{"Poor", "Fair", "Good", "Excellent"}},
		},
	},
	{
		Name: "Water Analysis",
		Items: []Item{
			{Name: "NDWI (Normalized Difference Water Index)", Key: "NDWI", Kind: ResultNumeric, Low: -1, High: 1},
			{Name: "MNDWI (Modified Normalized Difference Water Index)", Key: "MNDWI", Kind: ResultNumeric, Low: -1, High: 1},
			{Name: "Water Body Extent", Key: "Water Coverage", Kind: ResultPercent, Low: 0, High: 40, Template: "%.1f%% of the area is covered by water"},
			{Name: "Flood Risk Indicator", Key: "Flood Risk", Kind: ResultLabel, Labels: []string{"Low", "Moderate", "High"}},
		},
	},
	{
		Name: "Urban & Soil Analysis",
		Items: []Item{
			{Name: "NDBI (Normalized Difference Built-up Index)", Key: "NDBI", Kind: ResultNumeric, Low: -1, High: 1},
			{Name: "BSI (Bare Soil Index)", Key: "BSI", Kind: ResultNumeric, Low: -1, High: 1},
			{Name: "Urban Expansion Estimate", Key: "Urban Expansion", Kind: ResultPercent, Low: 0, High: 15, Template: "%.1f%% increase in built-up area"},
			{Name: "Soil Moisture Estimate", Key: "Soil Moisture", Kind: ResultLabel, Labels: []string{"Dry", "Moderate", "Moist", "Saturated"}},
		},
	},
	{
		Name: "Change Detection",
		Items: []Item{
			{Name: "Vegetation Change (NDVI Difference)", Key: "NDVI", Kind: ResultNumeric, Low: -2, High: 2},
			{Name: "Burn Severity (NBR)", Key: "NBR", Kind: ResultNumeric, Low: -1, High: 1},
			{Name: "Land Cover Change Summary", Key: "Land Cover Change", Kind: ResultLabel, Labels: []string{"No significant change", "Minor change", "Moderate change", "Major change"}},
		},
	},
})
