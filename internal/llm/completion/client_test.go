package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	xerrors "OpenAgent-Chain/internal/errors"
	"OpenAgent-Chain/internal/llm"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("expected error when api key is missing")
	}
	if _, err := NewClient(Config{APIKey: "key"}); err == nil {
		t.Fatal("expected error when base url is missing")
	}
}

func TestCompleteSuccess(t *testing.T) {
	var captured struct {
		Authorization string
		Body          map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Authorization = r.Header.Get("Authorization")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": `[{"address":"alice.eth","amount":0.05}]`,
					},
				},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()

	content, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "决策"},
			{Role: llm.RoleUser, Content: "respond"},
		},
		Temperature:     1,
		TopP:            0.95,
		TopK:            40,
		PresencePenalty: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(content, "alice.eth") {
		t.Fatalf("unexpected content: %q", content)
	}

	if !strings.HasPrefix(captured.Authorization, "Bearer ") {
		t.Fatalf("authorization header missing: %q", captured.Authorization)
	}
	if captured.Body["top_k"] != float64(40) {
		t.Fatalf("top_k missing in request: %v", captured.Body)
	}
	if captured.Body["model"] == "" {
		t.Fatal("model field missing in request")
	}
}

func TestCompleteHTTPErrorIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()

	_, err = client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if xerrors.CodeOf(err) != xerrors.CodeNetworkFailure {
		t.Fatalf("expected NETWORK_FAILURE, got %v", err)
	}
}

func TestCompleteRequiresMessages(t *testing.T) {
	client, err := NewClient(Config{APIKey: "test", BaseURL: "http://localhost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Complete(context.Background(), llm.Request{}); err == nil {
		t.Fatal("expected error for empty message list")
	}
}
