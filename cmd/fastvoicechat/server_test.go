package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	orchestration "github.com/jiroshimaya/fastvoicechat/core"
)

type fixedState orchestration.State

func (s fixedState) State() orchestration.State {
	return orchestration.State(s)
}

func TestRouterServesStateHealthAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "fastvoicechat_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	server := httptest.NewServer(newRouter(registry, fixedState(orchestration.StatePlayingAnswer)))
	defer server.Close()

	response, err := http.Get(server.URL + "/state")
	if err != nil {
		t.Fatalf("failed to get state: %v", err)
	}
	var state stateResponse
	if err := json.NewDecoder(response.Body).Decode(&state); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	response.Body.Close()
	if state.State != orchestration.StatePlayingAnswer.String() {
		t.Fatalf("expected state %q, got %q", orchestration.StatePlayingAnswer, state.State)
	}

	response, err = http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("failed to get health: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", response.StatusCode)
	}

	response, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to get metrics: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if !strings.Contains(string(body), "fastvoicechat_test_total 1") {
		t.Fatalf("expected metrics output to contain the test counter, got %q", body)
	}
}
