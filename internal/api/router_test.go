// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/mangaguard/internal/config"
)

func TestHealthLive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rec, resp := f.do(t, http.MethodGet, "/api/v1/health/live", "")
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Errorf("live: %d %+v", rec.Code, resp)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing on health")
	}
}

func TestHealthReady(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusOK {
		t.Errorf("ready: status = %d", rec.Code)
	}

	f.ready["status_store"] = errors.New("dial tcp: refused")
	rec, resp := f.do(t, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready: status = %d", rec.Code)
	}
	var data struct {
		Ready  bool              `json:"ready"`
		Checks map[string]string `json:"checks"`
	}
	dataInto(t, resp, &data)
	if data.Ready || data.Checks["status_store"] != "error" || data.Checks["database"] != "ok" {
		t.Errorf("data = %+v", data)
	}
	if strings.Contains(rec.Body.String(), "refused") {
		t.Error("check error leaked to client")
	}
}

func TestRouter_RequestIDs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "req-42" {
		t.Errorf("X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
	}
	if !strings.Contains(rec.Body.String(), `"request_id":"req-42"`) {
		t.Errorf("request id missing from metadata: %s", rec.Body.String())
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown route: %d %+v", rec.Code, resp.Error)
	}
	rec, _ = f.do(t, http.MethodDelete, "/api/v1/moderation/run", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: status = %d", rec.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/flags", nil)
	req.Header.Set("Origin", "https://admin.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/flags", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func TestRouter_RunRateLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	mw := NewChiMiddleware(NewChiMiddlewareConfig(&config.SecurityConfig{RateLimitReqs: 1000, RateLimitWindow: time.Minute}))
	router := NewRouter(NewHandler(Deps{Jobs: f.jobs}), mw).SetupChi()

	var last *httptest.ResponseRecorder
	for i := 0; i <= RateLimitRun.Requests; i++ {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/api/v1/moderation/run", nil))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("request %d: status = %d, want 429", RateLimitRun.Requests+1, last.Code)
	}
	if !strings.Contains(last.Body.String(), ErrCodeTooManyRequests) {
		t.Errorf("429 body not in API envelope: %s", last.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/v1/health/live", "")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "api_requests_total") {
		t.Errorf("metrics: status %d", rec.Code)
	}
}

func TestWakeRouter(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	WakeRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wake", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("wake: status = %d", rec.Code)
	}
}

func TestNewChiMiddlewareConfig(t *testing.T) {
	t.Parallel()
	cfg := NewChiMiddlewareConfig(&config.SecurityConfig{
		CORSOrigins:       []string{"https://a.example"},
		RateLimitReqs:     7,
		RateLimitWindow:   time.Second,
		RateLimitDisabled: true,
	})
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.RateLimitRequests != 7 || cfg.RateLimitWindow != time.Second || !cfg.RateLimitDisabled {
		t.Errorf("cfg = %+v", cfg)
	}

	def := NewChiMiddlewareConfig(nil)
	if def.RateLimitRequests != 100 || len(def.CORSAllowedOrigins) != 0 {
		t.Errorf("defaults = %+v", def)
	}
}
