package computation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ndvi       = "NDVI (Normalized Difference Vegetation Index)"
	evi        = "EVI (Enhanced Vegetation Index)"
	ndviDelta  = "Vegetation Change (NDVI Difference)"
	vegetation = "Vegetation Analysis"
)

func TestDefaultCatalog_Shape(t *testing.T) {
	cats := DefaultCatalog.Categories()
	require.Len(t, cats, 4)
	assert.Equal(t, 15, DefaultCatalog.Len())
	for _, cat := range cats {
		assert.GreaterOrEqual(t, len(cat.Items), 3, cat.Name)
		assert.LessOrEqual(t, len(cat.Items), 4, cat.Name)
	}
}

func TestToggle(t *testing.T) {
	s := NewSelection(DefaultCatalog)
	require.NoError(t, s.Toggle(ndvi))
	assert.True(t, s.Contains(ndvi))
	require.NoError(t, s.Toggle(ndvi))
	assert.False(t, s.Contains(ndvi))
	assert.Equal(t, 0, s.Len())

	err := s.Toggle("Magic Index")
	assert.True(t, errors.Is(err, ErrUnknownItem))
}

func TestCategoryState_FollowsItems(t *testing.T) {
	s := NewSelection(DefaultCatalog)
	names, err := DefaultCatalog.ItemNames(vegetation)
	require.NoError(t, err)

	state, err := s.CategoryState(vegetation)
	require.NoError(t, err)
	assert.Equal(t, Unchecked, state)

	for _, n := range names {
		require.NoError(t, s.Toggle(n))
	}
	assert.True(t, s.FullySelected(vegetation))

	require.NoError(t, s.Toggle(names[2]))
	assert.False(t, s.FullySelected(vegetation))
	state, _ = s.CategoryState(vegetation)
	assert.Equal(t, Indeterminate, state)
}

func TestSetCategory_UnionWithoutDuplicates(t *testing.T) {
	s := NewSelection(DefaultCatalog)
	require.NoError(t, s.Toggle(ndvi))
	require.NoError(t, s.SetCategory(vegetation, true))
	assert.Equal(t, 4, s.Len())

	require.NoError(t, s.SetCategory(vegetation, true))
	assert.Equal(t, 4, s.Len())

	require.NoError(t, s.Toggle(ndviDelta))
	require.NoError(t, s.SetCategory(vegetation, false))
	assert.Equal(t, []string{ndviDelta}, s.Items())

	assert.True(t, errors.Is(s.SetCategory("Geology", true), ErrUnknownCategory))
}

func TestToggleCategory(t *testing.T) {
	s := NewSelection(DefaultCatalog)
	require.NoError(t, s.Toggle(evi))

	require.NoError(t, s.ToggleCategory(vegetation))
	assert.True(t, s.FullySelected(vegetation))

	require.NoError(t, s.ToggleCategory(vegetation))
	assert.Equal(t, 0, s.Len())
}

func TestItems_CatalogOrder(t *testing.T) {
	s := NewSelection(DefaultCatalog)
	require.NoError(t, s.Toggle(ndviDelta))
	require.NoError(t, s.Toggle(evi))
	require.NoError(t, s.Toggle(ndvi))
	assert.Equal(t, []string{ndvi, evi, ndviDelta}, s.Items())

	s.Clear()
	assert.Empty(t, s.Items())
}

func TestCheckStateString(t *testing.T) {
	assert.Equal(t, "checked", Checked.String())
	assert.Equal(t, "indeterminate", Indeterminate.String())
	assert.Equal(t, "unchecked", Unchecked.String())
}
