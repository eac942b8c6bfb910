package openaichat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkwell-ai/inkwell/internal/port/provider"
)

func TestGenerateMissingKey(t *testing.T) {
	c := NewClient("http://unused", "", 5*time.Second)

	_, err := c.Generate(context.Background(), provider.Request{Model: "gpt-4o", Prompt: "x"})
	if !errors.Is(err, provider.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "{\"text\": \"done\", \"confidence\": 0.9}"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 5*time.Second)
	reply, err := c.Generate(context.Background(), provider.Request{
		Model:       "gpt-4o",
		Prompt:      "review this",
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatal(err)
	}

	if body["model"] != "gpt-4o" {
		t.Errorf("model = %v", body["model"])
	}
	if reply.Text != "done" {
		t.Errorf("Text = %q", reply.Text)
	}
	if reply.Confidence != 0.9 {
		t.Errorf("Confidence = %v", reply.Confidence)
	}
}

func TestSupportsImage(t *testing.T) {
	c := NewClient("http://unused", "k", time.Second)
	if c.SupportsImage("gpt-4o") {
		t.Error("adapter is text-only")
	}
}
