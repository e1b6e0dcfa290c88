// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package services

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*HTTPServerService)(nil)

// listenerServer serves on a listener opened by the test so the port is
// known before Serve starts.
type listenerServer struct {
	*http.Server
	ln net.Listener
}

func (s listenerServer) ListenAndServe() error {
	return s.Serve(s.ln)
}

// blockingHandler holds every request until release is closed.
type blockingHandler struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingHandler() *blockingHandler {
	return &blockingHandler{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (h *blockingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	select {
	case h.started <- struct{}{}:
	default:
	}
	<-h.release
	_, _ = io.WriteString(w, "ok")
}

func startService(t *testing.T, name string, handler http.Handler, timeout time.Duration) (addr string, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	svc := NewHTTPServerService(name, listenerServer{Server: &http.Server{Handler: handler}, ln: ln}, timeout)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	t.Cleanup(cancel)
	return "http://" + ln.Addr().String(), cancel, errCh
}

func TestNewHTTPServerService_Names(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"api-server", "api-server"},
		{"wake-server", "wake-server"},
		{"", "http-server"},
	}
	for _, tt := range tests {
		svc := NewHTTPServerService(tt.name, &http.Server{}, 0)
		if svc.String() != tt.want {
			t.Errorf("String() = %q, want %q", svc.String(), tt.want)
		}
		if svc.shutdownTimeout != 10*time.Second {
			t.Errorf("%s: default shutdown timeout = %v", tt.want, svc.shutdownTimeout)
		}
	}
}

func TestHTTPServerService_DrainsInFlightRequest(t *testing.T) {
	h := newBlockingHandler()
	addr, cancel, done := startService(t, "api-server", h, 5*time.Second)

	respCh := make(chan string, 1)
	go func() {
		resp, err := http.Get(addr + "/api/v1/moderation/status")
		if err != nil {
			respCh <- "error: " + err.Error()
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		respCh <- string(body)
	}()

	select {
	case <-h.started:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()

	select {
	case err := <-done:
		t.Fatalf("Serve returned with a request in flight: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(h.release)
	if body := <-respCh; body != "ok" {
		t.Errorf("in-flight response = %q, want ok", body)
	}
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the request drained")
	}
}

func TestHTTPServerService_ShutdownTimeout(t *testing.T) {
	h := newBlockingHandler()
	t.Cleanup(func() { close(h.release) })
	addr, cancel, done := startService(t, "wake-server", h, 50*time.Millisecond)

	go func() {
		resp, err := http.Get(addr + "/wake")
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-h.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Serve = %v, want deadline exceeded", err)
		}
		if err == nil || !strings.HasPrefix(err.Error(), "wake-server shutdown failed") {
			t.Errorf("error not attributed to the service: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve ignored the shutdown timeout")
	}
}

func TestHTTPServerService_ListenFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	svc := NewHTTPServerService("api-server", &http.Server{Addr: taken.Addr().String()}, time.Second)
	err = svc.Serve(context.Background())
	if err == nil || !strings.HasPrefix(err.Error(), "api-server failed") {
		t.Errorf("Serve = %v, want bind failure attributed to api-server", err)
	}
}

func TestHTTPServerService_ClosedServerIsNotAFailure(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0"}
	if err := srv.Close(); err != nil {
		t.Fatal(err)
	}
	if err := NewHTTPServerService("api-server", srv, time.Second).Serve(context.Background()); err != nil {
		t.Errorf("Serve on a closed server = %v, want nil", err)
	}
}
