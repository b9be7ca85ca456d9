package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_FlatMargin(t *testing.T) {
	s := setupTestServer(t)

	// WHEN: Loading the flat scenario
	rec := s.do("POST", "/api/scenarios/load", map[string]string{"scenario_id": "flat-margin"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[map[string]any](t, rec)
	id, _ := resp["calculation_id"].(string)
	require.NotEmpty(t, id)

	// THEN: The saved quote totals 1000 -> 1100 -> 1210
	calc := decodeBody[CalculationDTO](t, s.do("GET", "/api/calculations/"+id, nil))
	assert.Equal(t, "1210", calc.OverallTotal.String())

	current := decodeBody[map[string]map[string]any](t, s.do("GET", "/api/scenarios/current", nil))
	assert.Equal(t, "flat-margin", current["scenario"]["id"])
}

func TestScenario_TieredCatalog(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do("POST", "/api/scenarios/load", map[string]string{"scenario_id": "tiered-catalog"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := decodeBody[map[string]any](t, rec)["calculation_id"].(string)

	// Hardware 600 + 960 = 1560 at 15% -> 1794
	// Services 1950 unpriced -> 1950
	// Clearance 210 at -10% -> 189
	// Items 3933 at 10% global -> 4326.3, +5% user -> 4542.615
	calc := decodeBody[CalculationDTO](t, s.do("GET", "/api/calculations/"+id, nil))
	require.Len(t, calc.Groups, 3)
	assert.Equal(t, "1794", calc.Groups[0].Total.String())
	assert.Equal(t, "189", calc.Groups[2].Total.String())
	assert.Equal(t, "3933", calc.ItemsTotal.String())
	assert.Equal(t, "4542.615", calc.OverallTotal.String())
}

func TestScenario_UnknownAndReset(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do("POST", "/api/scenarios/load", map[string]string{"scenario_id": "nope"}).Code)

	list := decodeBody[[]ScenarioDTO](t, s.do("GET", "/api/scenarios", nil))
	assert.Len(t, list, len(scenarios))

	require.Equal(t, http.StatusOK, s.do("POST", "/api/scenarios/load", map[string]string{"scenario_id": "flat-margin"}).Code)
	require.Equal(t, http.StatusOK, s.do("POST", "/api/scenarios/reset", nil).Code)

	groups := decodeBody[[]GroupDTO](t, s.do("GET", "/api/groups", nil))
	assert.Empty(t, groups)
}

func TestScenario_CurrentUnderConcurrentResets(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusOK, s.do("POST", "/api/scenarios/load", map[string]string{"scenario_id": "flat-margin"}).Code)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/scenarios/reset", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/scenarios/current", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	current := decodeBody[map[string]any](t, s.do("GET", "/api/scenarios/current", nil))
	assert.Nil(t, current["scenario"])
}
