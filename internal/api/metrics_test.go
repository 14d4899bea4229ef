package api

import (
	"net/http"
	"strings"
	"testing"
)

func TestMetricsExposeRequestCounters(t *testing.T) {
	server := newTestServer(t, Options{})
	server.signUp(t, "ana@example.com", "Ana")

	if health := server.call(t, http.MethodGet, "/healthz", "", nil, nil); health.status != http.StatusOK {
		t.Fatalf("expected healthy server, got %d", health.status)
	}

	response := server.call(t, http.MethodGet, "/metrics", "", nil, nil)
	if response.status != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", response.status)
	}
	body := string(response.body)
	for _, want := range []string{
		`usd_http_requests_total{method="GET",route="/healthz",status="200"} 1`,
		`usd_auth_events_total{event="signup",outcome="ok"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics to contain %q", want)
		}
	}
}

func TestUnknownRouteReturnsJSONNotFound(t *testing.T) {
	server := newTestServer(t, Options{})

	response := server.call(t, http.MethodGet, "/nowhere", "", nil, nil)
	if response.status != http.StatusNotFound || response.errorCode(t) != "not_found" {
		t.Fatalf("expected JSON 404, got %d %s", response.status, response.body)
	}
}
