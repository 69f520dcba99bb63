/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Entries:
    EntryDTO, FileEntryRequest

  Entities:
    EntityDTO, CreateEntityRequest

  Blueprints:
    BlueprintDTO (wraps factory.BlueprintJSON)

  Jurisdictions / Holidays:
    JurisdictionDTO, CreateJurisdictionRequest, IngestCalendarRequest

  Passes:
    PassReportDTO, PassRunDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/blueprint.go: BlueprintJSON type
*/
package api

import (
	"time"

	"github.com/warp/compliance-engine/engine"
	"github.com/warp/compliance-engine/factory"
	"github.com/warp/compliance-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EntryDTO represents one calendar entry in API responses.
type EntryDTO struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	EntityID    string `json:"entity_id"`
	BlueprintID string `json:"blueprint_id"`

	FormulaVersion int `json:"formula_version"`
	PenaltyVersion int `json:"penalty_version"`
	EntryVersion   int `json:"entry_version"`

	PeriodType  string `json:"period_type"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	FiscalYear  string `json:"fiscal_year,omitempty"`

	OriginalDueDate string  `json:"original_due_date,omitempty"`
	AdjustedDueDate string  `json:"adjusted_due_date,omitempty"`
	ExtendedDueDate *string `json:"extended_due_date,omitempty"`

	Status          string   `json:"status"`
	ExemptionReason string   `json:"exemption_reason,omitempty"`
	FormCode        string   `json:"form_code,omitempty"`
	Requirements    []string `json:"requirements,omitempty"`

	FiledDate       *string `json:"filed_date,omitempty"`
	FilingReference string  `json:"filing_reference,omitempty"`

	DaysOverdue    int    `json:"days_overdue"`
	PenaltyAmount  string `json:"penalty_amount"`
	InterestAmount string `json:"interest_amount"`
	TotalLiability string `json:"total_liability"`
	LiabilityStale bool   `json:"liability_stale,omitempty"`

	RemindersSent []int `json:"reminders_sent,omitempty"`

	Version   int    `json:"version"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// FileEntryRequest marks an entry as filed.
type FileEntryRequest struct {
	FiledDate string `json:"filed_date"` // YYYY-MM-DD, defaults to today
	Reference string `json:"reference,omitempty"`
}

// EntityDTO represents a business entity.
type EntityDTO struct {
	ID               string            `json:"id"`
	ClientID         string            `json:"client_id"`
	Name             string            `json:"name"`
	Type             string            `json:"type"`
	JurisdictionID   string            `json:"jurisdiction_id"`
	Turnover         string            `json:"turnover"`
	RegistrationDate string            `json:"registration_date"`
	Attributes       map[string]string `json:"attributes,omitempty"`
}

// CreateEntityRequest is the request to register an entity.
type CreateEntityRequest struct {
	ID               string            `json:"id"`
	ClientID         string            `json:"client_id"`
	Name             string            `json:"name"`
	Type             string            `json:"type"`
	JurisdictionID   string            `json:"jurisdiction_id"`
	Turnover         string            `json:"turnover,omitempty"`
	RegistrationDate string            `json:"registration_date"`
	Attributes       map[string]string `json:"attributes,omitempty"`
}

// BlueprintDTO represents a blueprint in API responses.
type BlueprintDTO struct {
	ID     string                `json:"id"`
	Code   string                `json:"code"`
	Name   string                `json:"name"`
	Config factory.BlueprintJSON `json:"config"`
}

// CreateBlueprintRequest is the request to create a blueprint.
type CreateBlueprintRequest struct {
	Config factory.BlueprintJSON `json:"config"`
}

// JurisdictionDTO represents one regulatory hierarchy node.
type JurisdictionDTO struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	Path     string `json:"path"`
	TaxCode  string `json:"tax_code,omitempty"`
	Weekend  []int  `json:"weekend,omitempty"` // weekday numbers, Sunday = 0
}

// HolidayDTO represents one holiday date.
type HolidayDTO struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// IngestCalendarRequest loads a full (jurisdiction, year) holiday calendar.
type IngestCalendarRequest struct {
	JurisdictionID string       `json:"jurisdiction_id"`
	Year           int          `json:"year"`
	Holidays       []HolidayDTO `json:"holidays"`
}

// PassReportDTO summarizes one evaluation pass.
type PassReportDTO struct {
	Generated   int      `json:"generated"`
	Reevaluated int      `json:"reevaluated"`
	Changed     int      `json:"changed"`
	Deferred    int      `json:"deferred"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors,omitempty"`
}

// PassRunDTO is one recorded pass run.
type PassRunDTO struct {
	ID          string   `json:"id"`
	StartedAt   string   `json:"started_at"`
	CompletedAt *string  `json:"completed_at,omitempty"`
	Status      string   `json:"status"`
	Generated   int      `json:"generated"`
	Reevaluated int      `json:"reevaluated"`
	Changed     int      `json:"changed"`
	Deferred    int      `json:"deferred"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors,omitempty"`
}

// GenerateRequest materializes entries for one entity (all blueprints,
// current period) outside the scheduled pass.
type GenerateRequest struct {
	EntityID string `json:"entity_id"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntryDTO(e engine.CalendarEntry) EntryDTO {
	dto := EntryDTO{
		ID:              string(e.ID),
		ClientID:        string(e.ClientID),
		EntityID:        string(e.EntityID),
		BlueprintID:     string(e.BlueprintID),
		FormulaVersion:  e.FormulaVersion,
		PenaltyVersion:  e.PenaltyVersion,
		EntryVersion:    e.EntryVersion,
		PeriodType:      string(e.PeriodType),
		PeriodStart:     e.PeriodStart.String(),
		PeriodEnd:       e.PeriodEnd.String(),
		FiscalYear:      e.FiscalYear,
		Status:          string(e.Status),
		ExemptionReason: e.ExemptionReason,
		FormCode:        e.FormCode,
		Requirements:    e.Requirements,
		FilingReference: e.FilingReference,
		DaysOverdue:     e.DaysOverdue,
		PenaltyAmount:   e.PenaltyAmount.String(),
		InterestAmount:  e.InterestAmount.String(),
		TotalLiability:  e.TotalLiability.String(),
		LiabilityStale:  e.LiabilityStale,
		RemindersSent:   e.RemindersSent,
		Version:         e.Version,
		UpdatedAt:       e.UpdatedAt.Time.Format(time.RFC3339),
	}
	if !e.OriginalDueDate.IsZero() {
		dto.OriginalDueDate = e.OriginalDueDate.String()
		dto.AdjustedDueDate = e.AdjustedDueDate.String()
	}
	if e.ExtendedDueDate != nil {
		s := e.ExtendedDueDate.String()
		dto.ExtendedDueDate = &s
	}
	if e.FiledDate != nil {
		s := e.FiledDate.String()
		dto.FiledDate = &s
	}
	return dto
}

func toEntryDTOs(entries []engine.CalendarEntry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toEntityDTO(e engine.Entity) EntityDTO {
	return EntityDTO{
		ID:               string(e.ID),
		ClientID:         string(e.ClientID),
		Name:             e.Name,
		Type:             string(e.Type),
		JurisdictionID:   string(e.JurisdictionID),
		Turnover:         e.Turnover.String(),
		RegistrationDate: e.RegistrationDate.String(),
		Attributes:       e.Attributes,
	}
}

func toJurisdictionDTO(j engine.Jurisdiction) JurisdictionDTO {
	dto := JurisdictionDTO{
		ID:       string(j.ID),
		ParentID: string(j.ParentID),
		Code:     j.Code,
		Name:     j.Name,
		Level:    int(j.Level),
		Path:     j.Path,
		TaxCode:  j.TaxCode,
	}
	for wd, off := range j.Weekend {
		if off {
			dto.Weekend = append(dto.Weekend, int(wd))
		}
	}
	return dto
}

func toPassRunDTO(r sqlite.PassRun) PassRunDTO {
	dto := PassRunDTO{
		ID:          r.ID,
		StartedAt:   r.StartedAt.Format(time.RFC3339),
		Status:      r.Status,
		Generated:   r.Generated,
		Reevaluated: r.Reevaluated,
		Changed:     r.Changed,
		Deferred:    r.Deferred,
		Failed:      r.Failed,
		Errors:      r.Errors,
	}
	if r.CompletedAt != nil {
		s := r.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	return dto
}
