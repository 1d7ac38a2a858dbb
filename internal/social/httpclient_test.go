package social

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	xerrors "OpenAgent-Chain/internal/errors"
)

func TestNewHTTPClientValidation(t *testing.T) {
	if _, err := NewHTTPClient(Config{Token: "t"}); err == nil {
		t.Fatal("expected error when base url is missing")
	}
	if _, err := NewHTTPClient(Config{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("expected error when token is missing")
	}
}

func TestNotificationsDecodesPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notifications" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Fatalf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"id": "1", "author": "alice", "content": "gm, send eth to alice.eth"},
		})
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Config{BaseURL: srv.URL, Token: "token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	posts, err := client.Notifications(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 || posts[0].Author != "alice" {
		t.Fatalf("unexpected posts: %v", posts)
	}
	if posts[0].String() != "@alice: gm, send eth to alice.eth" {
		t.Fatalf("unexpected rendering: %q", posts[0].String())
	}
}

func TestPublishFailureIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Config{BaseURL: srv.URL, Token: "token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Publish(context.Background(), "hello world")
	if xerrors.CodeOf(err) != xerrors.CodePublishFailure {
		t.Fatalf("expected PUBLISH_FAILURE, got %v", err)
	}
}

func TestPublishRejectsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(Config{BaseURL: srv.URL, Token: "token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.Publish(context.Background(), "hello world")
	if xerrors.CodeOf(err) != xerrors.CodePublishFailure {
		t.Fatalf("expected PUBLISH_FAILURE, got %v", err)
	}
}
