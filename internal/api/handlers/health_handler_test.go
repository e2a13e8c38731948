package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeReadiness struct {
	ready bool
	err   error
}

func (f fakeReadiness) Ready() bool                    { return f.ready }
func (f fakeReadiness) Ping(ctx context.Context) error { return f.err }

func TestHealthEndpoints(t *testing.T) {
	h := NewHealthHandler(fakeReadiness{ready: true})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.Liveness(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr = httptest.NewRecorder()
	h.Readiness(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReadinessNotReady(t *testing.T) {
	for name, r := range map[string]fakeReadiness{
		"loading":     {ready: false},
		"unreachable": {ready: true, err: errors.New("database is locked")},
	} {
		h := NewHealthHandler(r)
		rr := httptest.NewRecorder()
		h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", name, rr.Code)
		}
	}
}
