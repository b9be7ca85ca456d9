/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the store with reference data
	and a quote, so the rollup and simulate endpoints have something to show.

AVAILABLE SCENARIOS:
	flat-margin:    One group, 10% group margin, 10% global margin
	tiered-catalog: Volume brackets, a group without table, a discount group

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Apply a reference document via factory
 3. Create a calculation
 4. Add line items and save the rollup

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "tiered-catalog"}

NOTE:
	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - factory/presets.go: Reference documents
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/margin-engine/factory"
	"github.com/warp/margin-engine/margin"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "flat-margin",
		Name:        "Flat Margin",
		Description: "Single group at 10% with a 10% global margin: 1000 -> 1210",
	},
	{
		ID:          "tiered-catalog",
		Name:        "Tiered Catalog",
		Description: "Volume brackets per group, an unpriced services group and a clearance discount",
	},
}

type scenarioItem struct {
	category    margin.CategoryID
	description string
	price       string
	quantity    string
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.loadScenario(r.Context(), req.ScenarioID)
	if err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "unknown scenario", fmt.Errorf("%s", req.ScenarioID))
			return
		}
		h.writeDomainError(w, err)
		return
	}

	h.setScenario(req.ScenarioID)
	h.Log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "loaded",
		"scenario":       req.ScenarioID,
		"calculation_id": id,
	})
}

func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.setScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) scenario() string {
	h.scenarioMu.RLock()
	defer h.scenarioMu.RUnlock()
	return h.currentScenario
}

func (h *Handler) setScenario(id string) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()
	h.currentScenario = id
}

var errUnknownScenario = errors.New("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, id string) (margin.CalculationID, error) {
	switch id {
	case "flat-margin":
		return h.seedScenario(ctx, factory.FlatReferenceJSON("0.1", "0.1"), factory.FormatJSON, "Flat margin demo", "0",
			scenarioItem{1, "Consulting day", "100", "10"},
		)
	case "tiered-catalog":
		return h.seedScenario(ctx, factory.TieredReferenceYAML, factory.FormatYAML, "Office network refit", "0.05",
			scenarioItem{10, "Cat6 cable (m)", "1.20", "500"},
			scenarioItem{11, "24-port switch", "240", "4"},
			scenarioItem{20, "Installation day", "650", "3"},
			scenarioItem{30, "Legacy patch panel", "35", "6"},
		)
	}
	return "", errUnknownScenario
}

func (h *Handler) seedScenario(ctx context.Context, docText string, format factory.Format, title, userRate string, items ...scenarioItem) (margin.CalculationID, error) {
	if err := h.reset(ctx); err != nil {
		return "", err
	}

	doc, err := factory.Parse([]byte(docText), format)
	if err != nil {
		return "", err
	}
	if err := doc.Apply(ctx, h.Store); err != nil {
		return "", err
	}

	calc, err := h.Calculator.CreateCalculation(ctx, title, decimal.RequireFromString(userRate))
	if err != nil {
		return "", err
	}
	for _, it := range items {
		_, err := h.Calculator.AddItem(ctx, calc.ID, margin.Item{
			CategoryID:  it.category,
			Description: it.description,
			Price:       decimal.RequireFromString(it.price),
			Quantity:    decimal.RequireFromString(it.quantity),
		})
		if err != nil {
			return "", err
		}
	}

	if _, _, err := h.Calculator.Save(ctx, calc.ID); err != nil {
		return "", err
	}
	return calc.ID, nil
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Store.(margin.Resetter)
	if !ok {
		return fmt.Errorf("store %T cannot be reset", h.Store)
	}
	return resetter.Reset(ctx)
}
