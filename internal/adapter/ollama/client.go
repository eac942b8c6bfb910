// Package ollama implements the provider port for a local Ollama server.
// Ollama is the default backend and the only one reachable without an API
// key, so it also serves as the fallback for unrecognized model names.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/inkwell-ai/inkwell/internal/domain/extract"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
	"github.com/inkwell-ai/inkwell/internal/resilience"
)

// Client talks to the Ollama generate API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates an Ollama client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Name implements provider.Provider.
func (c *Client) Name() string { return provider.BackendOllama }

// SupportsImage reports true for every model: Ollama embeds images as
// base64 fields on the generate payload regardless of model.
func (c *Client) SupportsImage(string) bool { return true }

// generateRequest is the Ollama /api/generate payload.
type generateRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Stream      bool     `json:"stream"`
	Temperature float64  `json:"temperature"`
	Format      string   `json:"format"` // request JSON output when the model supports it
	Images      []string `json:"images,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends the prompt (and optional image) to Ollama and normalizes
// the reply into the canonical triple.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Reply, error) {
	payload := generateRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		Stream:      false,
		Temperature: req.Temperature,
		Format:      "json",
	}
	if len(req.Image) > 0 {
		payload.Images = []string{base64.StdEncoding.EncodeToString(req.Image)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	data, err := c.post(ctx, "/api/generate", body)
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, provider.Upstream(c.Name(), fmt.Errorf("decode response: %w", err))
	}

	canonical := extract.Parse(resp.Response)
	return &provider.Reply{
		Text:           canonical.Text,
		Confidence:     canonical.Confidence,
		StructuredData: canonical.StructuredData,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		err := c.breaker.Execute(call)
		if err != nil {
			return nil, provider.Upstream(c.Name(), err)
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, provider.Upstream(c.Name(), err)
	}
	return result, nil
}
