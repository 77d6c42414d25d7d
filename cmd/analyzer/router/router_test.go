package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/riiali/green-microbench/pkg/report"
	"github.com/riiali/green-microbench/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func storedReport(t *testing.T, store storage.Store, runID string) *report.Report {
	t.Helper()
	rep := report.Assemble(report.Params{
		RunID:       runID,
		WindowStart: time.Date(2026, 1, 4, 16, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 1, 4, 16, 20, 0, 0, time.UTC),
		Resolution:  5 * time.Second,
		Services: []report.ServiceEnergyRecord{
			{Service: "booking", EnergyJoules: 250, PeakWatts: 20},
		},
		Ranking: []report.RankingEntry{
			{Rank: 1, Service: "booking", EnergyJoules: 250, PeakWatts: 20},
		},
	})
	if err := store.Put(context.Background(), rep); err != nil {
		t.Fatal(err)
	}
	return rep
}

func TestHealthEndpoint(t *testing.T) {
	mux := SetupRoutes(storage.NewMemoryStore(), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := SetupRoutes(storage.NewMemoryStore(), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestGetReport_MissingRunParam(t *testing.T) {
	mux := SetupRoutes(storage.NewMemoryStore(), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetReport_InvalidRunID(t *testing.T) {
	mux := SetupRoutes(storage.NewMemoryStore(), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/report?run=bad%2Fname", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetReport_NotFound(t *testing.T) {
	mux := SetupRoutes(storage.NewMemoryStore(), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/report?run=missing", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetReport_Success(t *testing.T) {
	store := storage.NewMemoryStore()
	storedReport(t, store, "run-1")
	mux := SetupRoutes(store, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/report?run=run-1", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}

	var got report.Report
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if got.RunID != "run-1" || len(got.Ranking) != 1 {
		t.Errorf("response = %+v", got)
	}
}

func TestGetLatest(t *testing.T) {
	store := storage.NewMemoryStore()
	mux := SetupRoutes(store, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/report/latest", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("empty store: status = %d, want %d", w.Code, http.StatusNotFound)
	}

	storedReport(t, store, "run-1")
	storedReport(t, store, "run-2")

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/report/latest", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusOK)
	}

	var got report.Report
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != "run-2" {
		t.Errorf("latest run = %q, want run-2", got.RunID)
	}
}
