package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"resume-agent/internal/llm"
)

func newTestServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCompleteMapsRolesAndSystem(t *testing.T) {
	var payload map[string]any
	server := newTestServer(t, http.StatusOK, `{
		"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
		"content":[{"type":"text","text":"first "},{"type":"text","text":"second"}],
		"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2}
	}`, &payload)

	client, err := NewClient(Options{APIKey: "k", Model: "claude-test", BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got, err := client.Complete(context.Background(), "system text", []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "more"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "first second" {
		t.Fatalf("text = %q", got)
	}

	msgs, ok := payload["messages"].([]any)
	if !ok || len(msgs) != 3 {
		t.Fatalf("messages = %#v", payload["messages"])
	}
	if role := msgs[1].(map[string]any)["role"]; role != "assistant" {
		t.Fatalf("second role = %v", role)
	}
	system, ok := payload["system"].([]any)
	if !ok || len(system) != 1 {
		t.Fatalf("system = %#v", payload["system"])
	}
	if text := system[0].(map[string]any)["text"]; text != "system text" {
		t.Fatalf("system text = %v", text)
	}
	if payload["max_tokens"].(float64) != defaultMaxTokens {
		t.Fatalf("max_tokens = %v", payload["max_tokens"])
	}
}

func TestCompleteReturnsStatusError(t *testing.T) {
	server := newTestServer(t, http.StatusServiceUnavailable, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, nil)

	client, err := NewClient(Options{APIKey: "k", Model: "claude-test", BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Complete(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "x"}})
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", statusErr.StatusCode)
	}
	if !llm.ShouldRetry(err) {
		t.Fatalf("expected 503 to be retryable")
	}
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient(Options{APIKey: "k"}); err == nil {
		t.Fatalf("expected model error")
	}
	if _, err := NewClient(Options{Model: "m"}); err == nil {
		t.Fatalf("expected api key error")
	}
}
