package summarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/codesmriti/codesmriti/internal/errs"
	"github.com/codesmriti/codesmriti/pkg/config"
)

func completionServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Summarizer.Endpoint = srv.URL
	cfg.Summarizer.Model = "test-model"
	return NewClient(&cfg.Summarizer), srv
}

func TestClientComplete(t *testing.T) {
	var gotReq chatRequest
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "A summary."}},
			},
		})
	})

	text, err := client.Complete(context.Background(), "sys", "user prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "A summary." {
		t.Errorf("text = %q", text)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "user prompt" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestClientServerErrorIsTransient(t *testing.T) {
	var calls atomic.Int32
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.Complete(context.Background(), "sys", "user")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errs.IsTransient(err) {
		t.Errorf("503 not classified transient: %v", err)
	}
}

func TestClientBadRequestIsPermanent(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad prompt", http.StatusBadRequest)
	})

	_, err := client.Complete(context.Background(), "sys", "user")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errs.IsTransient(err) {
		t.Errorf("400 classified transient: %v", err)
	}
}

func TestClientEmptyChoicesIsTransient(t *testing.T) {
	client, _ := completionServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Complete(context.Background(), "sys", "user")
	if !errs.IsTransient(err) {
		t.Errorf("empty choices not transient: %v", err)
	}
}
