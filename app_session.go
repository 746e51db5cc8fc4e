package main

import (
	"context"

	"imagery-compare/internal/computation"
	"imagery-compare/internal/session"
	"imagery-compare/internal/validation"
)

// ===================
// Comparison Session
// ===================

func (a *App) requestContext() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// GetSession returns the current session snapshot
func (a *App) GetSession() session.Snapshot {
	return a.session.Snapshot()
}

// GetCatalog returns the computation categories and items
func (a *App) GetCatalog() []computation.Category {
	return a.session.Catalog().Categories()
}

// GetSeedInput returns the form values a fresh session starts with
func (a *App) GetSeedInput() validation.RawInput {
	return seedInput()
}

// UpdateInput records the form as the user types
func (a *App) UpdateInput(input validation.RawInput) session.Snapshot {
	return a.session.UpdateInput(input)
}

// Submit validates the form and loads the before/after images
func (a *App) Submit(input validation.RawInput) session.Snapshot {
	snap := a.session.Submit(a.requestContext(), input)
	a.TrackEvent("comparison_submitted", map[string]interface{}{
		"status":     snap.Status.String(),
		"cloudCover": input.CloudCover,
	})
	return snap
}

// ResetSession returns everything to the startup state
func (a *App) ResetSession() session.Snapshot {
	snap := a.session.Reset()
	a.TrackEvent("session_reset", nil)
	return snap
}

// ToggleItem selects or deselects one computation
func (a *App) ToggleItem(name string) (session.Snapshot, error) {
	return a.session.ToggleItem(name)
}

// SetCategorySelected selects or clears every computation of a category
func (a *App) SetCategorySelected(category string, checked bool) (session.Snapshot, error) {
	return a.session.SetCategory(category, checked)
}

// ToggleCategory flips a category checkbox
func (a *App) ToggleCategory(category string) (session.Snapshot, error) {
	return a.session.ToggleCategory(category)
}

// RunComputation runs the selected computations on the loaded images
func (a *App) RunComputation() (session.Snapshot, error) {
	snap, err := a.session.RunComputation(a.requestContext())
	if err != nil {
		return snap, err
	}
	a.TrackEvent("computation_run", map[string]interface{}{
		"items":   len(snap.Selection),
		"results": len(snap.Results),
	})
	return snap, nil
}
