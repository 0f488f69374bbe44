package answer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"regrag/pkg/models"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, Model: "test-model", MaxTokens: 256})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return NewGenerator(client)
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
}

func TestAnswer_EmptyPassagesSkipsLLM(t *testing.T) {
	called := false
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		chatReply(t, w, "should not happen")
	})

	resp, err := g.Answer(t.Context(), "What are the solvency requirements?", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if called {
		t.Error("LLM called despite empty passages")
	}
	if resp.Answer != EmptyIndexAnswer {
		t.Errorf("answer = %q, want empty-index answer", resp.Answer)
	}
	if len(resp.Citations) != 0 {
		t.Errorf("citations = %v, want none", resp.Citations)
	}
}

func TestAnswer_ComposesContext(t *testing.T) {
	var gotReq chatRequest
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		chatReply(t, w, "Solvency margin must be at least 150%.")
	})

	passages := []models.Passage{
		{Text: "The required solvency margin is 150%.", Source: "circular_2024.pdf", Page: 3, Score: 0.91},
		{Text: "Margins are reviewed annually.", Source: "guideline.pdf", Page: 7, Score: 0.84},
	}

	resp, err := g.Answer(t.Context(), "What is the solvency margin?", passages)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if resp.Answer != "Solvency margin must be at least 150%." {
		t.Errorf("answer = %q", resp.Answer)
	}

	if len(gotReq.Messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("first message role = %q", gotReq.Messages[0].Role)
	}
	user := gotReq.Messages[1].Content
	if !strings.Contains(user, "[circular_2024.pdf | Page 3]") {
		t.Errorf("user message missing first passage header: %q", user)
	}
	if !strings.Contains(user, "[guideline.pdf | Page 7]") {
		t.Errorf("user message missing second passage header: %q", user)
	}
	if !strings.Contains(user, "Question: What is the solvency margin?") {
		t.Errorf("user message missing question: %q", user)
	}
	if gotReq.MaxTokens != 256 {
		t.Errorf("max_tokens = %d, want 256", gotReq.MaxTokens)
	}
}

func TestAnswer_CitationsDeduped(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "answer")
	})

	passages := []models.Passage{
		{Text: "a", Source: "doc.pdf", Page: 2, Score: 0.8},
		{Text: "b", Source: "doc.pdf", Page: 2, Score: 0.9},
		{Text: "c", Source: "doc.pdf", Page: 5, Score: 0.7},
	}

	resp, err := g.Answer(t.Context(), "q", passages)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("got %d citations, want 2: %v", len(resp.Citations), resp.Citations)
	}
	if resp.Citations[0].Source != "doc.pdf" || resp.Citations[0].Page != 2 {
		t.Errorf("first citation = %+v", resp.Citations[0])
	}
	if resp.Citations[0].Score != 0.9 {
		t.Errorf("deduped citation score = %v, want best 0.9", resp.Citations[0].Score)
	}
	if resp.Citations[1].Page != 5 {
		t.Errorf("second citation = %+v", resp.Citations[1])
	}
}

func TestAnswer_LLMError(t *testing.T) {
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})

	passages := []models.Passage{{Text: "a", Source: "doc.pdf", Page: 1, Score: 0.5}}
	if _, err := g.Answer(t.Context(), "q", passages); err == nil {
		t.Error("Answer() expected error when LLM fails")
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "", Model: "m"}); err == nil {
		t.Error("NewClient() expected error for empty base URL")
	}
	if _, err := NewClient(Config{BaseURL: "http://localhost", Model: ""}); err == nil {
		t.Error("NewClient() expected error for empty model")
	}
}
