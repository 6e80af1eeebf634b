package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var req struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
			Stream   bool      `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		if req.Stream {
			t.Error("Streaming should be disabled")
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("Unexpected messages: %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"message": Message{Role: "assistant", Content: "world"},
			"done":    true,
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model")
	reply, err := client.Send(context.Background(), UserMessage("hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply != "world" {
		t.Errorf("Reply = %q, want %q", reply, "world")
	}
}

func TestOllamaSendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "test-model")
	if _, err := client.Send(context.Background(), UserMessage("hello")); err == nil {
		t.Error("Expected error on non-200 status")
	}

	if _, err := client.Send(context.Background(), nil); err == nil {
		t.Error("Expected error on empty messages")
	}
}
