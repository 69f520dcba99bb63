/*
handlers.go - HTTP API handlers for the compliance calendar system

PURPOSE:
  Exposes the compliance engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Entries:
    GET    /api/entries                List calendar entries (filterable)
    GET    /api/entries/{id}           Get one entry
    POST   /api/entries/{id}/file      Mark an entry filed

  Entities:
    GET    /api/entities               List entities
    POST   /api/entities               Register entity
    GET    /api/entities/{id}          Get entity details
    GET    /api/entities/{id}/entries  Entity's calendar

  Blueprints:
    GET    /api/blueprints             List blueprints
    POST   /api/blueprints             Create blueprint from JSON config
    GET    /api/blueprints/{id}        Get one blueprint

  Jurisdictions / Holidays:
    GET    /api/jurisdictions          List hierarchy nodes
    POST   /api/jurisdictions          Create node
    GET    /api/holidays               Calendar for jurisdiction+year
    POST   /api/holidays               Ingest a full calendar

  Admin:
    POST   /api/admin/generate         Generate entries for one entity
    POST   /api/admin/pass             Run a full evaluation pass now
    GET    /api/passes                 Recent pass run records

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, configuration errors
  - 404: Resource not found
  - 409: Conflict (concurrent update, already filed)
  - 422: Ambiguous override data
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/compliance-engine/engine"
	"github.com/warp/compliance-engine/factory"
	"github.com/warp/compliance-engine/store/sqlite"
)

const dayLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Generator *engine.Generator
	Factory   *factory.BlueprintFactory

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store and generator.
func NewHandler(store *sqlite.Store, gen *engine.Generator) *Handler {
	return &Handler{
		Store:     store,
		Generator: gen,
		Factory:   factory.NewBlueprintFactory(),
	}
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns calendar entries matching the query filters.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := engine.EntryFilter{
		ClientID:    engine.ClientID(q.Get("client_id")),
		EntityID:    engine.EntityID(q.Get("entity_id")),
		BlueprintID: engine.BlueprintID(q.Get("blueprint_id")),
		Status:      engine.EntryStatus(q.Get("status")),
	}
	if v := q.Get("from"); v != "" {
		tp, err := parseDayParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		filter.From = &tp
	}
	if v := q.Get("to"); v != "" {
		tp, err := parseDayParam(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		filter.To = &tp
	}

	entries, err := h.Generator.GetCalendarEntries(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetEntry returns a single calendar entry.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))

	entry, err := h.Store.GetEntry(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// FileEntry marks an entry as filed, freezing its liability.
func (h *Handler) FileEntry(w http.ResponseWriter, r *http.Request) {
	id := engine.EntryID(chi.URLParam(r, "id"))

	var req FileEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	filedDate := engine.Today()
	if req.FiledDate != "" {
		tp, err := parseDayParam(req.FiledDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid filed_date format (use YYYY-MM-DD)", err)
			return
		}
		filedDate = tp
	}

	entry, err := h.Generator.FileCompliance(r.Context(), id, filedDate, req.Reference)
	if err != nil {
		writeEngineError(w, "Failed to file entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// =============================================================================
// ENTITY HANDLERS
// =============================================================================

// ListEntities returns all registered entities.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.Store.ListEntities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entities", err)
		return
	}

	dtos := make([]EntityDTO, len(entities))
	for i, e := range entities {
		dtos[i] = toEntityDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEntity returns one entity.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))

	entity, err := h.Store.Entity(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get entity", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityDTO(entity))
}

// CreateEntity registers a new entity.
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.ClientID == "" || req.JurisdictionID == "" {
		writeError(w, http.StatusBadRequest, "id, client_id and jurisdiction_id are required", nil)
		return
	}

	registration, err := parseDayParam(req.RegistrationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid registration_date format (use YYYY-MM-DD)", err)
		return
	}

	// Reject unknown jurisdictions up front.
	if _, err := h.Store.Jurisdiction(r.Context(), engine.JurisdictionID(req.JurisdictionID)); err != nil {
		writeEngineError(w, "Unknown jurisdiction", err)
		return
	}

	// Turnover gates jurisdiction overrides; a malformed amount must not
	// silently become zero.
	turnover := engine.ZeroMoney()
	if req.Turnover != "" {
		turnover, err = engine.ParseMoney(req.Turnover)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid turnover amount", err)
			return
		}
	}

	entity := engine.Entity{
		ID:               engine.EntityID(req.ID),
		ClientID:         engine.ClientID(req.ClientID),
		Name:             req.Name,
		Type:             engine.EntityType(req.Type),
		JurisdictionID:   engine.JurisdictionID(req.JurisdictionID),
		Turnover:         turnover,
		RegistrationDate: registration,
		Attributes:       req.Attributes,
	}

	if err := h.Store.SaveEntity(r.Context(), entity); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create entity", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntityDTO(entity))
}

// GetEntityEntries returns the calendar for one entity.
func (h *Handler) GetEntityEntries(w http.ResponseWriter, r *http.Request) {
	id := engine.EntityID(chi.URLParam(r, "id"))

	entries, err := h.Generator.GetCalendarEntries(r.Context(), engine.EntryFilter{EntityID: id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// =============================================================================
// BLUEPRINT HANDLERS
// =============================================================================

// ListBlueprints returns all blueprints.
func (h *Handler) ListBlueprints(w http.ResponseWriter, r *http.Request) {
	blueprints, err := h.Store.ListBlueprints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list blueprints", err)
		return
	}

	dtos := make([]BlueprintDTO, 0, len(blueprints))
	for _, b := range blueprints {
		dto, err := h.toBlueprintDTO(b)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode blueprint", err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBlueprint returns one blueprint.
func (h *Handler) GetBlueprint(w http.ResponseWriter, r *http.Request) {
	id := engine.BlueprintID(chi.URLParam(r, "id"))

	b, err := h.Store.Blueprint(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get blueprint", err)
		return
	}
	dto, err := h.toBlueprintDTO(b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode blueprint", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateBlueprint creates a blueprint from a JSON config.
func (h *Handler) CreateBlueprint(w http.ResponseWriter, r *http.Request) {
	var req CreateBlueprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	configJSON, err := json.Marshal(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid blueprint config", err)
		return
	}
	blueprint, err := h.Factory.ParseBlueprint(string(configJSON))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid blueprint config", err)
		return
	}

	if err := h.Store.SaveBlueprint(r.Context(), blueprint); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save blueprint", err)
		return
	}

	dto, err := h.toBlueprintDTO(blueprint)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode blueprint", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) toBlueprintDTO(b engine.Blueprint) (BlueprintDTO, error) {
	configJSON, err := h.Factory.EncodeBlueprint(b)
	if err != nil {
		return BlueprintDTO{}, err
	}
	var cfg factory.BlueprintJSON
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return BlueprintDTO{}, err
	}
	return BlueprintDTO{
		ID:     string(b.ID),
		Code:   b.Code,
		Name:   b.Name,
		Config: cfg,
	}, nil
}

// =============================================================================
// JURISDICTION AND HOLIDAY HANDLERS
// =============================================================================

// ListJurisdictions returns every hierarchy node.
func (h *Handler) ListJurisdictions(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.Store.ListJurisdictions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list jurisdictions", err)
		return
	}

	dtos := make([]JurisdictionDTO, len(nodes))
	for i, j := range nodes {
		dtos[i] = toJurisdictionDTO(j)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateJurisdiction creates one hierarchy node.
func (h *Handler) CreateJurisdiction(w http.ResponseWriter, r *http.Request) {
	var req JurisdictionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "id and code are required", nil)
		return
	}

	j := engine.Jurisdiction{
		ID:       engine.JurisdictionID(req.ID),
		ParentID: engine.JurisdictionID(req.ParentID),
		Code:     req.Code,
		Name:     req.Name,
		Level:    engine.JurisdictionLevel(req.Level),
		Path:     req.Path,
		TaxCode:  req.TaxCode,
	}
	if len(req.Weekend) > 0 {
		j.Weekend = make(map[time.Weekday]bool, len(req.Weekend))
		for _, wd := range req.Weekend {
			j.Weekend[time.Weekday(wd)] = true
		}
	}

	if err := h.Store.SaveJurisdiction(r.Context(), j); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create jurisdiction", err)
		return
	}
	writeJSON(w, http.StatusCreated, toJurisdictionDTO(j))
}

// GetHolidays returns the calendar for ?jurisdiction=&year=.
func (h *Handler) GetHolidays(w http.ResponseWriter, r *http.Request) {
	jurisdictionID := engine.JurisdictionID(r.URL.Query().Get("jurisdiction"))
	yearStr := r.URL.Query().Get("year")
	if jurisdictionID == "" || yearStr == "" {
		writeError(w, http.StatusBadRequest, "jurisdiction and year query parameters are required", nil)
		return
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	cal, ok, err := h.Store.CalendarFor(r.Context(), jurisdictionID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load calendar", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No calendar ingested for this jurisdiction and year", nil)
		return
	}

	dtos := make([]HolidayDTO, len(cal.Holidays))
	for i, hol := range cal.Holidays {
		dtos[i] = HolidayDTO{
			ID:       hol.ID,
			Date:     hol.Date.String(),
			Name:     hol.Name,
			Type:     string(hol.Type),
			Optional: hol.Optional,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// IngestCalendar loads a full (jurisdiction, year) holiday calendar.
func (h *Handler) IngestCalendar(w http.ResponseWriter, r *http.Request) {
	var req IngestCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.JurisdictionID == "" || req.Year == 0 {
		writeError(w, http.StatusBadRequest, "jurisdiction_id and year are required", nil)
		return
	}

	cal := engine.HolidayCalendar{
		JurisdictionID: engine.JurisdictionID(req.JurisdictionID),
		Year:           req.Year,
	}
	for _, dto := range req.Holidays {
		date, err := parseDayParam(dto.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid holiday date (use YYYY-MM-DD)", err)
			return
		}
		id := dto.ID
		if id == "" {
			id = uuid.NewString()
		}
		holidayType := engine.HolidayType(dto.Type)
		if holidayType == "" {
			holidayType = engine.HolidayNational
		}
		cal.Holidays = append(cal.Holidays, engine.Holiday{
			ID:             id,
			JurisdictionID: cal.JurisdictionID,
			Date:           date,
			Name:           dto.Name,
			Type:           holidayType,
			Optional:       dto.Optional,
		})
	}

	if err := h.Store.SaveCalendar(r.Context(), cal); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to ingest calendar", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"jurisdiction_id": req.JurisdictionID,
		"year":            req.Year,
		"holidays":        len(cal.Holidays),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GenerateForEntity materializes current-period entries for one entity.
func (h *Handler) GenerateForEntity(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entity, err := h.Store.Entity(r.Context(), engine.EntityID(req.EntityID))
	if err != nil {
		writeEngineError(w, "Unknown entity", err)
		return
	}
	blueprints, err := h.Store.ListBlueprints(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list blueprints", err)
		return
	}

	var generated []EntryDTO
	now := engine.Today()
	for _, blueprint := range blueprints {
		period := blueprint.PeriodConfig.PeriodFor(now)
		entry, created, err := h.Generator.GenerateEntry(r.Context(), entity, blueprint, period)
		if err != nil {
			if engine.IsDeferrable(err) {
				continue
			}
			writeEngineError(w, "Failed to generate entries", err)
			return
		}
		if created {
			generated = append(generated, toEntryDTO(entry))
		}
	}
	writeJSON(w, http.StatusCreated, generated)
}

// RunPass runs a full evaluation pass immediately.
func (h *Handler) RunPass(w http.ResponseWriter, r *http.Request) {
	report, err := h.Generator.RunPass(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Pass failed", err)
		return
	}
	writeJSON(w, http.StatusOK, PassReportDTO{
		Generated:   report.Generated,
		Reevaluated: report.Reevaluated,
		Changed:     report.Changed,
		Deferred:    report.Deferred,
		Failed:      report.Failed,
		Errors:      report.Errors,
	})
}

// ListPassRuns returns the most recent recorded passes.
func (h *Handler) ListPassRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	runs, err := h.Store.ListPassRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pass runs", err)
		return
	}

	dtos := make([]PassRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toPassRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func parseDayParam(s string) (engine.TimePoint, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return engine.TimePoint{}, err
	}
	return engine.NewTimePoint(t.Year(), t.Month(), t.Day()), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps domain errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrAlreadyFiled),
		errors.Is(err, engine.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, engine.ErrAmbiguousOverride):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
