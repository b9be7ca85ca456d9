/*
handlers.go - HTTP API handlers for the margin engine

PURPOSE:
  Exposes reference-data administration, quote building, rollups and
  simulation via REST. Handles HTTP request/response and JSON, and
  delegates to the quote service.

ENDPOINTS:
  Reference data:
    GET    /api/groups                          List groups
    POST   /api/groups                          Create or rename a group
    GET    /api/categories                      List categories
    POST   /api/categories                      Create or move a category

  Margin tables (kind = group | category, or the literal "global"):
    GET    /api/tables/{kind}/{id}              Committed table
    PUT    /api/tables/{kind}/{id}              Replace whole table
    PUT    /api/tables/{kind}/{id}/brackets/{index}  Edit one bracket

  Calculations:
    GET    /api/calculations                    List, newest first
    POST   /api/calculations                    Create draft
    GET    /api/calculations/{id}               Stored calculation
    POST   /api/calculations/{id}/items         Add line item
    PUT    /api/calculations/{id}/user-margin   Set user margin rate
    GET    /api/calculations/{id}/rollup        Display (not persisted)
    GET    /api/calculations/{id}/lines         Display, rendered lines
    POST   /api/calculations/{id}/save          Recompute and persist
    GET    /api/calculations/{id}/report.xlsx   Spreadsheet export

  Simulation:
    POST   /api/simulate                        Adjustment query

ERROR HANDLING:
  - 400: Invalid input, validation errors
  - 404: Unknown group, category or calculation
  - 422: Bracket edit breaks table continuity (details carry index + kind)
  - 500: Internal errors (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/warp/margin-engine/margin"
	"github.com/warp/margin-engine/quote"
	"github.com/warp/margin-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      margin.Store
	Calculator *quote.Calculator
	Log        logrus.FieldLogger

	validate *validator.Validate

	// Track currently loaded scenario
	scenarioMu      sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler over store.
func NewHandler(store margin.Store, log logrus.FieldLogger) *Handler {
	calc := quote.New(store, log)
	return &Handler{
		Store:      store,
		Calculator: calc,
		Log:        calc.Log,
		validate:   newValidator(),
	}
}

// =============================================================================
// GROUPS / CATEGORIES
// =============================================================================

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Store.ListGroups(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]GroupDTO, len(groups))
	for i, g := range groups {
		dtos[i] = toGroupDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !h.decode(w, r, &req) {
		return
	}
	g := margin.Group{ID: margin.GroupID(req.ID), Name: req.Name}
	if err := h.Store.SaveGroup(r.Context(), g); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupDTO(g))
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	c := margin.Category{ID: margin.CategoryID(req.ID), Name: req.Name, GroupID: margin.GroupID(req.GroupID)}
	if err := h.Store.SaveCategory(r.Context(), c); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

// =============================================================================
// TABLES
// =============================================================================

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table owner", err)
		return
	}
	table, err := h.Store.FindTable(r.Context(), owner)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableDTO(table))
}

func (h *Handler) PutTable(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table owner", err)
		return
	}
	var req PutTableRequest
	if !h.decode(w, r, &req) {
		return
	}

	table := margin.RangeTable{Owner: owner, Brackets: make([]margin.Bracket, len(req.Brackets))}
	for i, b := range req.Brackets {
		table.Brackets[i] = b.bracket()
	}
	if err := h.Store.SaveTable(r.Context(), table); err != nil {
		h.writeDomainError(w, err)
		return
	}

	saved, err := h.Store.FindTable(r.Context(), owner)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableDTO(saved))
}

func (h *Handler) EditBracket(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid table owner", err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bracket index", err)
		return
	}
	var req BracketDTO
	if !h.decode(w, r, &req) {
		return
	}

	table, err := h.Calculator.EditBracket(r.Context(), owner, index, req.bracket())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableDTO(table))
}

// ownerParam reads {kind}/{id}; the "global" route has neither.
func ownerParam(r *http.Request) (margin.Owner, error) {
	kind := margin.OwnerKind(chi.URLParam(r, "kind"))
	if kind == "" {
		return margin.GlobalOwner, nil
	}
	if kind != margin.OwnerGroup && kind != margin.OwnerCategory {
		return margin.Owner{}, fmt.Errorf("unknown owner kind %q", kind)
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return margin.Owner{}, fmt.Errorf("invalid owner id: %w", err)
	}
	return margin.Owner{Kind: kind, ID: id}, nil
}

// =============================================================================
// CALCULATIONS
// =============================================================================

func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	calcs, err := h.Store.ListCalculations(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]CalculationDTO, len(calcs))
	for i := range calcs {
		dtos[i] = toCalculationDTO(&calcs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCalculation(w http.ResponseWriter, r *http.Request) {
	var req CreateCalculationRequest
	if !h.decode(w, r, &req) {
		return
	}
	calc, err := h.Calculator.CreateCalculation(r.Context(), req.Title, req.UserMarginRate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCalculationDTO(calc))
}

func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	calc, err := h.Store.GetCalculation(r.Context(), calculationParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(calc))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	calc, err := h.Calculator.AddItem(r.Context(), calculationParam(r), margin.Item{
		CategoryID:  margin.CategoryID(req.CategoryID),
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCalculationDTO(calc))
}

func (h *Handler) SetUserMargin(w http.ResponseWriter, r *http.Request) {
	var req SetUserMarginRequest
	if !h.decode(w, r, &req) {
		return
	}
	calc, err := h.Calculator.SetUserMarginRate(r.Context(), calculationParam(r), req.Rate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(calc))
}

func (h *Handler) GetRollup(w http.ResponseWriter, r *http.Request) {
	_, result, err := h.Calculator.Display(r.Context(), calculationParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRollupDTO(result))
}

func (h *Handler) GetLines(w http.ResponseWriter, r *http.Request) {
	_, result, err := h.Calculator.Display(r.Context(), calculationParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	names, err := h.groupNames(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Lines(result, names))
}

func (h *Handler) SaveCalculation(w http.ResponseWriter, r *http.Request) {
	calc, result, err := h.Calculator.Save(r.Context(), calculationParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"calculation": toCalculationDTO(calc),
		"rollup":      toRollupDTO(result),
	})
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	calc, result, err := h.Calculator.Display(r.Context(), calculationParam(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	names, err := h.groupNames(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "calculation-"+string(calc.ID)+".xlsx"))
	if err := report.WriteXLSX(w, calc, result, names); err != nil {
		h.Log.WithError(err).WithField("calculation", calc.ID).Error("xlsx export failed")
	}
}

func (h *Handler) groupNames(r *http.Request) (report.Names, error) {
	groups, err := h.Store.ListGroups(r.Context())
	if err != nil {
		return nil, err
	}
	names := make(report.Names, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
	}
	return names, nil
}

func calculationParam(r *http.Request) margin.CalculationID {
	return margin.CalculationID(chi.URLParam(r, "id"))
}

// =============================================================================
// SIMULATE
// =============================================================================

func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.Calculator.Simulate(r.Context(), req.query())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRollupDTO(result))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps margin errors to status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var ce *margin.ContinuityError
	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   err.Error(),
			Code:    "continuity",
			Details: ContinuityDTO{Index: ce.Index, Kind: string(ce.Kind)},
		})
	case margin.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case margin.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid"})
	default:
		h.Log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
