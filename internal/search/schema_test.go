package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

// scriptedTransport routes requests to canned responses and records the
// bodies it saw, keyed by "METHOD path".
type scriptedTransport struct {
	responses map[string]scriptedResponse
	requests  []string
	bodies    map[string]string
}

type scriptedResponse struct {
	status int
	body   string
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		responses: make(map[string]scriptedResponse),
		bodies:    make(map[string]string),
	}
}

func (t *scriptedTransport) on(method, path string, status int, body string) {
	t.responses[method+" "+path] = scriptedResponse{status: status, body: body}
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.Method + " " + req.URL.Path
	t.requests = append(t.requests, key)
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		t.bodies[key] = string(data)
	}

	resp, ok := t.responses[key]
	if !ok {
		return nil, fmt.Errorf("unexpected request %s", key)
	}

	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: resp.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(resp.body)),
	}, nil
}

func testClient(t *testing.T, rt http.RoundTripper) *Client {
	t.Helper()
	c, err := NewClientWithTransport(rt)
	if err != nil {
		t.Fatalf("NewClientWithTransport: %v", err)
	}
	return c
}

func TestEnsureIndex_CreatesWhenAbsent(t *testing.T) {
	rt := newScriptedTransport()
	rt.on(http.MethodHead, "/executions", 404, "")
	rt.on(http.MethodPut, "/executions", 200, `{"acknowledged":true}`)

	c := testClient(t, rt)
	if err := c.EnsureIndex(context.Background(), ExecutionIndexSpec("executions")); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	body := rt.bodies["PUT /executions"]
	var payload struct {
		Settings map[string]any `json:"settings"`
		Mappings struct {
			Properties map[string]any `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("create body not JSON: %v", err)
	}
	if payload.Settings["number_of_shards"] != float64(2) {
		t.Errorf("number_of_shards = %v, want 2", payload.Settings["number_of_shards"])
	}
	if _, ok := payload.Mappings.Properties["workflowId"]; !ok {
		t.Error("mapping missing workflowId")
	}
}

func TestEnsureIndex_UpdatesMappingWhenPresent(t *testing.T) {
	rt := newScriptedTransport()
	rt.on(http.MethodHead, "/executions", 200, "")
	rt.on(http.MethodPut, "/executions/_mapping", 200, `{"acknowledged":true}`)

	c := testClient(t, rt)
	if err := c.EnsureIndex(context.Background(), ExecutionIndexSpec("executions")); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}

	body := rt.bodies["PUT /executions/_mapping"]
	if !strings.Contains(body, `"properties"`) {
		t.Errorf("mapping body = %s, want additive properties update", body)
	}
	if strings.Contains(body, "number_of_shards") {
		t.Error("mapping update must not carry settings")
	}
}

func TestEnsureIndex_ProvisioningError(t *testing.T) {
	rt := newScriptedTransport()
	rt.on(http.MethodHead, "/executions", 404, "")
	rt.on(http.MethodPut, "/executions", 400,
		`{"error":{"type":"illegal_argument_exception","reason":"bad settings"}}`)

	c := testClient(t, rt)
	err := c.EnsureIndex(context.Background(), ExecutionIndexSpec("executions"))

	var provisioning *ProvisioningError
	if !errors.As(err, &provisioning) {
		t.Fatalf("err = %v, want *ProvisioningError", err)
	}
	if provisioning.Index != "executions" {
		t.Errorf("Index = %q", provisioning.Index)
	}
	if !strings.Contains(err.Error(), "bad settings") {
		t.Errorf("err = %v, want backend reason included", err)
	}
}

func TestEnsureAll_StopsOnFirstFailure(t *testing.T) {
	rt := newScriptedTransport()
	rt.on(http.MethodHead, "/executions", 500, "")

	c := testClient(t, rt)
	err := c.EnsureAll(context.Background(),
		ExecutionIndexSpec("executions"), WatermarkIndexSpec("executions-sync"))
	if err == nil {
		t.Fatal("EnsureAll: want error")
	}
	for _, req := range rt.requests {
		if strings.Contains(req, "executions-sync") {
			t.Errorf("request %s made after earlier provisioning failure", req)
		}
	}
}
