package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/router"
	"github.com/zen-systems/modelgate/pkg/telemetry"
)

func newTestServer(t *testing.T, rp *config.RoutingPolicy) (*httptest.Server, *adapter.MockAdapter) {
	t.Helper()
	if rp == nil {
		rp = config.DefaultRoutingPolicy()
	}
	policy, err := router.NewPolicy(rp)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	mock := adapter.NewMockAdapter()
	r := router.New(mock, policy,
		router.WithTelemetry(telemetry.NewLog(10, telemetry.WithMetrics(metrics))),
		router.WithMetrics(metrics))

	srv := httptest.NewServer(New(r, WithGatherer(reg)).Handler())
	t.Cleanup(srv.Close)
	return srv, mock
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRouteEndpoint(t *testing.T) {
	srv, mock := newTestServer(t, nil)
	mock.Script("openai/gpt-4o", adapter.MockReply{Text: `{"modules":[{"id":"m1","title":"T","summary":"S"}]}`})

	resp, out := post(t, srv.URL+"/v1/route", `{"task_id":"topic_map","prompt":"modules please","schema":"module_list"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, out)
	}
	if out["model_used"] != "openai/gpt-4o" {
		t.Fatalf("unexpected model %v", out["model_used"])
	}
	structured, ok := out["structured"].(map[string]any)
	if !ok || structured["modules"] == nil {
		t.Fatalf("expected structured modules, got %v", out["structured"])
	}
}

func TestRouteEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed", body: `{"prompt":`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"prompt":"x","colour":"red"}`, status: http.StatusBadRequest},
		{name: "no prompt", body: `{"task_id":"other"}`, status: http.StatusBadRequest},
		{name: "bad mode", body: `{"prompt":"x","mode":"turbo"}`, status: http.StatusBadRequest},
		{name: "bad role", body: `{"messages":[{"role":"robot","content":"x"}]}`, status: http.StatusBadRequest},
		{name: "unknown schema", body: `{"prompt":"x","schema":"nope"}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := post(t, srv.URL+"/v1/route", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d: %v", tt.status, resp.StatusCode, out)
			}
			if out["error"] == "" {
				t.Fatalf("expected error message")
			}
		})
	}
}

func TestRouteEndpointConfigError(t *testing.T) {
	rp := config.DefaultRoutingPolicy()
	rp.Defaults.Mode = ""
	srv, _ := newTestServer(t, rp)

	resp, out := post(t, srv.URL+"/v1/route", `{"task_id":"mystery","prompt":"x"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %v", resp.StatusCode, out)
	}
}

func TestRouteEndpointDegradesWithOK(t *testing.T) {
	srv, mock := newTestServer(t, nil)
	mock.Script("openai/gpt-4o", adapter.MockReply{Err: &adapter.AdapterError{Status: 500}})
	mock.Script("anthropic/claude-3.5-sonnet", adapter.MockReply{Err: &adapter.AdapterError{Status: 502}})

	resp, out := post(t, srv.URL+"/v1/route", `{"task_id":"topic_map","prompt":"x"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out["model_used"] != router.DegradedModel {
		t.Fatalf("expected degraded sentinel, got %v", out["model_used"])
	}
}

func TestToolEndpoint(t *testing.T) {
	srv, mock := newTestServer(t, nil)
	mock.Script("meta-llama/llama-3.1-8b-instruct", adapter.MockReply{Text: `{"overview":"Short."}`})

	resp, out := post(t, srv.URL+"/v1/tools/summarize_overview", `{"text":"a long document"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, out)
	}
	if out["task_id"] != router.TaskOverviewSummarize {
		t.Fatalf("unexpected task %v", out["task_id"])
	}

	resp, _ = post(t, srv.URL+"/v1/tools/launch_rockets", `{}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown tool, got %d", resp.StatusCode)
	}

	resp, _ = post(t, srv.URL+"/v1/tools/generate_quiz", `{"count":2}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing text, got %d", resp.StatusCode)
	}
}

func TestClassifyEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, out := post(t, srv.URL+"/v1/classify", `{"prompt":"draw a flowchart"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out["task_id"] != router.TaskDiagramMermaid || out["keyword"] != "flowchart" {
		t.Fatalf("unexpected classification %v", out)
	}
}

func TestRoutesAnalyticsAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	post(t, srv.URL+"/v1/route", `{"task_id":"other","prompt":"hello"}`)

	for _, path := range []string{"/v1/routes", "/v1/analytics", "/v1/telemetry"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		if path == "/v1/analytics" && out["total_calls"].(float64) != 1 {
			t.Fatalf("expected one call in analytics, got %v", out["total_calls"])
		}
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "modelgate_calls_total") {
		t.Fatalf("metrics output missing call counter")
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/v2/nothing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
