/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates a jurisdiction tree,
	holiday calendars, blueprints, entities and overrides that demonstrate
	specific engine features.

AVAILABLE SCENARIOS:

	standard:       One client with current obligations across all presets
	overdue:        Backdated filings accruing penalties and interest
	overrides:      Jurisdiction tree with extensions and an exemption

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the jurisdiction hierarchy and holiday calendars
 3. Save the statutory blueprint catalog
 4. Register entities (and overrides, where the scenario uses them)
 5. Run one evaluation pass to materialize the calendar

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overrides"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - statutory/blueprints.go: Preset blueprint catalog
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/compliance-engine/engine"
	"github.com/warp/compliance-engine/statutory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard",
		Name:        "Standard Client",
		Description: "One client with current obligations across every blueprint preset",
	},
	{
		ID:          "overdue",
		Name:        "Overdue Filings",
		Description: "Entities registered long ago with overdue entries accruing penalty and interest",
	},
	{
		ID:          "overrides",
		Name:        "Jurisdiction Overrides",
		Description: "City-level deadline extension, turnover-based exemption, and a rate override",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "standard":
		err = h.loadStandardScenario(ctx)
	case "overdue":
		err = h.loadOverdueScenario(ctx)
	case "overrides":
		err = h.loadOverridesScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	// Materialize the calendar for the seeded data.
	report, err := h.Generator.RunPass(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to run initial pass", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario":  req.ScenarioID,
		"generated": report.Generated,
		"changed":   report.Changed,
		"deferred":  report.Deferred,
	})
}

// ResetDatabase clears everything.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SHARED SEED DATA
// =============================================================================

// seedJurisdictions creates a country -> state -> city tree with holiday
// calendars for last year, this year and next year.
func (h *Handler) seedJurisdictions(ctx context.Context) error {
	nodes := []engine.Jurisdiction{
		{ID: "in", Code: "IN", Name: "India", Level: engine.LevelCountry, Path: "IN"},
		{ID: "in-ka", ParentID: "in", Code: "IN-KA", Name: "Karnataka", Level: engine.LevelState, Path: "IN/IN-KA"},
		{ID: "in-ka-blr", ParentID: "in-ka", Code: "IN-KA-BLR", Name: "Bengaluru", Level: engine.LevelCity, Path: "IN/IN-KA/IN-KA-BLR"},
		{ID: "in-mh", ParentID: "in", Code: "IN-MH", Name: "Maharashtra", Level: engine.LevelState, Path: "IN/IN-MH"},
	}
	for _, j := range nodes {
		if err := h.Store.SaveJurisdiction(ctx, j); err != nil {
			return err
		}
	}

	thisYear := time.Now().Year()
	for year := thisYear - 1; year <= thisYear+1; year++ {
		national := engine.HolidayCalendar{
			JurisdictionID: "in",
			Year:           year,
			Holidays: []engine.Holiday{
				{ID: fmt.Sprintf("in-republic-%d", year), JurisdictionID: "in",
					Date: engine.NewTimePoint(year, time.January, 26), Name: "Republic Day", Type: engine.HolidayNational},
				{ID: fmt.Sprintf("in-independence-%d", year), JurisdictionID: "in",
					Date: engine.NewTimePoint(year, time.August, 15), Name: "Independence Day", Type: engine.HolidayNational},
				{ID: fmt.Sprintf("in-gandhi-%d", year), JurisdictionID: "in",
					Date: engine.NewTimePoint(year, time.October, 2), Name: "Gandhi Jayanti", Type: engine.HolidayNational},
			},
		}
		if err := h.Store.SaveCalendar(ctx, national); err != nil {
			return err
		}

		state := engine.HolidayCalendar{
			JurisdictionID: "in-ka",
			Year:           year,
			Holidays: []engine.Holiday{
				{ID: fmt.Sprintf("ka-rajyotsava-%d", year), JurisdictionID: "in-ka",
					Date: engine.NewTimePoint(year, time.November, 1), Name: "Kannada Rajyotsava", Type: engine.HolidayRegional},
			},
		}
		if err := h.Store.SaveCalendar(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedBlueprints(ctx context.Context) error {
	for _, b := range statutory.Catalog() {
		if err := h.Store.SaveBlueprint(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStandardScenario(ctx context.Context) error {
	if err := h.seedJurisdictions(ctx); err != nil {
		return err
	}
	if err := h.seedBlueprints(ctx); err != nil {
		return err
	}

	today := time.Now()
	entities := []engine.Entity{
		{
			ID:               "ent-acme",
			ClientID:         "client-1",
			Name:             "Acme Manufacturing Pvt Ltd",
			Type:             engine.EntityCompany,
			JurisdictionID:   "in-ka-blr",
			Turnover:         engine.NewMoneyFromInt(50_000_000),
			RegistrationDate: engine.NewTimePoint(today.Year()-3, time.June, 15),
		},
		{
			ID:               "ent-beta",
			ClientID:         "client-1",
			Name:             "Beta Consulting LLP",
			Type:             engine.EntityLLP,
			JurisdictionID:   "in-ka",
			Turnover:         engine.NewMoneyFromInt(8_000_000),
			RegistrationDate: engine.NewTimePoint(today.Year()-1, time.February, 1),
		},
		{
			ID:               "ent-gamma",
			ClientID:         "client-2",
			Name:             "Gamma Traders",
			Type:             engine.EntitySoleProprietor,
			JurisdictionID:   "in-mh",
			Turnover:         engine.NewMoneyFromInt(1_200_000),
			RegistrationDate: engine.NewTimePoint(today.Year()-2, time.September, 10),
		},
	}
	for _, e := range entities {
		if err := h.Store.SaveEntity(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadOverdueScenario(ctx context.Context) error {
	if err := h.seedJurisdictions(ctx); err != nil {
		return err
	}
	if err := h.seedBlueprints(ctx); err != nil {
		return err
	}

	// Entities registered years ago: the license renewal anniversary and
	// any unfiled periods go overdue on the first pass.
	entities := []engine.Entity{
		{
			ID:               "ent-late",
			ClientID:         "client-9",
			Name:             "Latecomer Industries Pvt Ltd",
			Type:             engine.EntityCompany,
			JurisdictionID:   "in-ka-blr",
			Turnover:         engine.NewMoneyFromInt(120_000_000),
			RegistrationDate: engine.NewTimePoint(2019, time.April, 1),
		},
		{
			ID:               "ent-idle",
			ClientID:         "client-9",
			Name:             "Idle Holdings LLP",
			Type:             engine.EntityLLP,
			JurisdictionID:   "in-mh",
			Turnover:         engine.NewMoneyFromInt(30_000_000),
			RegistrationDate: engine.NewTimePoint(2020, time.July, 20),
		},
	}
	for _, e := range entities {
		if err := h.Store.SaveEntity(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadOverridesScenario(ctx context.Context) error {
	if err := h.loadStandardScenario(ctx); err != nil {
		return err
	}

	epoch := engine.NewTimePoint(2022, time.January, 1)
	smallTurnover := engine.NewMoneyFromInt(2_000_000)
	overrides := []engine.JurisdictionRule{
		{
			// City grants 10 extra days on the monthly return.
			ID:             "ovr-blr-extension",
			JurisdictionID: "in-ka-blr",
			BlueprintID:    "bp-monthly-return",
			Type:           engine.OverrideDeadline,
			Priority:       10,
			EffectiveFrom:  epoch,
			OffsetDaysDelta: 10,
			Reason:          "Municipal filing window extension",
		},
		{
			// Small proprietors are exempt from the monthly return.
			ID:             "ovr-small-exemption",
			JurisdictionID: "in",
			BlueprintID:    "bp-monthly-return",
			Type:           engine.OverrideExemption,
			Priority:       20,
			EffectiveFrom:  epoch,
			AppliesWhen: engine.RulePredicate{
				EntityTypes: []engine.EntityType{engine.EntitySoleProprietor},
				MaxTurnover: &smallTurnover,
			},
			Reason: "Below small-business turnover threshold",
		},
		{
			// State uses a stricter form for the annual filing.
			ID:             "ovr-ka-form",
			JurisdictionID: "in-ka",
			BlueprintID:    "bp-annual-filing",
			Type:           engine.OverrideForm,
			Priority:       5,
			EffectiveFrom:  epoch,
			FormCode:       "FORM-AF-20-KA",
		},
	}
	for _, r := range overrides {
		if err := h.Store.SaveOverride(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
