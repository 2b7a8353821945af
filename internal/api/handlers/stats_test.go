package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"epigrid/internal/types"
)

type mockSummaryProvider struct {
	statsResult types.StatsSummary
	mapResult   []types.LocationSummary
	lastWindow  time.Duration
}

func (m *mockSummaryProvider) Stats(window time.Duration) types.StatsSummary {
	m.lastWindow = window
	return m.statsResult
}

func (m *mockSummaryProvider) MapData(window time.Duration) []types.LocationSummary {
	m.lastWindow = window
	return m.mapResult
}

func newStatsRouter(provider SummaryProvider, defaultWindow time.Duration) http.Handler {
	h := NewStatsHandler(provider, defaultWindow, discardLogger())
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func TestHandleStats_DefaultWindow(t *testing.T) {
	last := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	provider := &mockSummaryProvider{
		statsResult: types.StatsSummary{
			TotalPatients:   41.2,
			AverageRisk:     0.44,
			ActiveLocations: 2,
			Locations: []types.LocationSummary{
				{Lat: 30.73, Lon: 76.78, PatientCount: 26.1, AvgRiskScore: 0.5, DataPoints: 2},
				{Lat: 28.70, Lon: 77.10, PatientCount: 15.1, AvgRiskScore: 0.38, DataPoints: 1},
			},
			LastUpdate: &last,
		},
	}
	router := newStatsRouter(provider, 24*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if provider.lastWindow != 24*time.Hour {
		t.Errorf("window = %v, want 24h default", provider.lastWindow)
	}

	var body struct {
		TotalPatients   float64 `json:"total_patients"`
		AverageRisk     float64 `json:"average_risk_score"`
		ActiveLocations int     `json:"active_locations"`
		Locations       []any   `json:"location_data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("stats body is not JSON: %v", err)
	}
	if body.TotalPatients != 41.2 {
		t.Errorf("total_patients = %v, want 41.2", body.TotalPatients)
	}
	if body.ActiveLocations != 2 {
		t.Errorf("active_locations = %d, want 2", body.ActiveLocations)
	}
	if len(body.Locations) != 2 {
		t.Errorf("location_data entries = %d, want 2", len(body.Locations))
	}
}

func TestHandleStats_CustomWindow(t *testing.T) {
	provider := &mockSummaryProvider{}
	router := newStatsRouter(provider, 24*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats?window=72h", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if provider.lastWindow != 72*time.Hour {
		t.Errorf("window = %v, want 72h", provider.lastWindow)
	}
}

func TestHandleStats_InvalidWindow(t *testing.T) {
	provider := &mockSummaryProvider{}
	router := newStatsRouter(provider, 24*time.Hour)

	for _, raw := range []string{"oneday", "-24h", "0s"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/stats?window="+raw, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("window %q: status = %d, want 400", raw, rec.Code)
		}
		if code := decodeErrorCode(t, rec.Body.Bytes()); code != string(types.ErrCodeValidationInvalidWindow) {
			t.Errorf("window %q: code = %q, want %q", raw, code, types.ErrCodeValidationInvalidWindow)
		}
	}
}

func TestHandleStats_EmptyStoreIsZeroValued(t *testing.T) {
	provider := &mockSummaryProvider{
		statsResult: types.StatsSummary{Locations: []types.LocationSummary{}},
	}
	router := newStatsRouter(provider, 24*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("empty store: status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"location_data":[]`) {
		t.Errorf("empty store should serialize location_data as [], got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "last_update") {
		t.Errorf("empty store should omit last_update, got %s", rec.Body.String())
	}
}

func TestHandleMap_Success(t *testing.T) {
	provider := &mockSummaryProvider{
		mapResult: []types.LocationSummary{
			{Lat: 28.70, Lon: 77.10, PatientCount: 15.1, AvgRiskScore: 0.38, DataPoints: 1},
			{Lat: 30.73, Lon: 76.78, PatientCount: 26.1, AvgRiskScore: 0.5, DataPoints: 2},
		},
	}
	router := newStatsRouter(provider, 24*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/v1/map", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var cells []types.LocationSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &cells); err != nil {
		t.Fatalf("map body is not a JSON array: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("cells = %d, want 2", len(cells))
	}
	if cells[0].Lat != 28.70 {
		t.Errorf("first cell lat = %v, want 28.70", cells[0].Lat)
	}
}

func TestHandleMap_EmptyIsArray(t *testing.T) {
	provider := &mockSummaryProvider{mapResult: []types.LocationSummary{}}
	router := newStatsRouter(provider, 24*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/v1/map", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty map body = %q, want []", body)
	}
}

func TestHandleMap_WindowValidated(t *testing.T) {
	provider := &mockSummaryProvider{}
	router := newStatsRouter(provider, 24*time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/v1/map?window=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
