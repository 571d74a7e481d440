package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthzReportsUptime(t *testing.T) {
	base := time.Date(2026, time.August, 30, 10, 0, 0, 0, time.UTC)
	now := base
	handlers := NewHealthHandlers(WithHealthClock(func() time.Time { return now }))

	now = base.Add(90 * time.Second)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handlers.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var body struct {
		Status    string `json:"status"`
		Uptime    string `json:"uptime"`
		Timestamp string `json:"timestamp"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "ok" {
		t.Fatalf("expected status ok got %q", body.Status)
	}
	if body.Uptime != "1m30s" {
		t.Fatalf("expected uptime 1m30s got %q", body.Uptime)
	}
	if body.Timestamp != "2026-08-30T10:01:30Z" {
		t.Fatalf("unexpected timestamp %q", body.Timestamp)
	}
}

func TestReadyzAllChecksPass(t *testing.T) {
	handlers := NewHealthHandlers(
		WithReadinessCheck("firestore", func(context.Context) error { return nil }),
		WithReadinessCheck("pubsub", func(context.Context) error { return nil }),
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handlers.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "ok" {
		t.Fatalf("expected status ok got %q", body.Status)
	}
	if body.Checks["firestore"] != "ok" || body.Checks["pubsub"] != "ok" {
		t.Fatalf("unexpected checks %+v", body.Checks)
	}
}

func TestReadyzDegradedCheck(t *testing.T) {
	handlers := NewHealthHandlers(
		WithReadinessCheck("firestore", func(context.Context) error { return errors.New("deadline exceeded") }),
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handlers.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}

	var body struct {
		Status  string            `json:"status"`
		Checks  map[string]string `json:"checks"`
		Details []string          `json:"details"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "degraded" {
		t.Fatalf("expected degraded got %q", body.Status)
	}
	if body.Checks["firestore"] != "degraded" {
		t.Fatalf("unexpected checks %+v", body.Checks)
	}
	if len(body.Details) != 1 || body.Details[0] != "firestore: deadline exceeded" {
		t.Fatalf("unexpected details %+v", body.Details)
	}
}
