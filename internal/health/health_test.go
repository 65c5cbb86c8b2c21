package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"framebroker/internal/bus"
)

func TestHealthReportsActiveStreams(t *testing.T) {
	reg := bus.NewRegistry()
	id, _ := bus.ParseStreamID("alpha")
	handle, sub, err := reg.Subscribe(id, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	defer handle.Release()

	h := NewHandler(reg)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ActiveStreams != 1 || body.TotalConnections != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Status != "ok" || body.Service != "framebroker" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthRejectsWrongMethod(t *testing.T) {
	h := NewHandler(bus.NewRegistry())
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
