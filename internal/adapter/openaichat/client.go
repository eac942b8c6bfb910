// Package openaichat implements the provider port for the OpenAI
// chat-completions API. Text-only: recognition images are routed to the
// multimodal backends, OpenAI handles the review step.
package openaichat

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/inkwell-ai/inkwell/internal/domain/extract"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
	"github.com/inkwell-ai/inkwell/internal/resilience"
)

const maxReplyTokens = 1000

// Client talks to the OpenAI chat-completions API.
type Client struct {
	api     *goopenai.Client
	hasKey  bool
	breaker *resilience.Breaker
}

// NewClient creates an OpenAI client. An empty apiKey is allowed at
// construction; Generate then fails with ErrMissingCredential.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		api:    goopenai.NewClientWithConfig(cfg),
		hasKey: apiKey != "",
	}
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Name implements provider.Provider.
func (c *Client) Name() string { return provider.BackendOpenAI }

// SupportsImage implements provider.Provider.
func (c *Client) SupportsImage(string) bool { return false }

// Generate sends a text prompt and normalizes the reply into the canonical
// triple.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Reply, error) {
	if !c.hasKey {
		return nil, fmt.Errorf("openai: %w", provider.ErrMissingCredential)
	}

	var resp goopenai.ChatCompletionResponse
	call := func() error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model: req.Model,
			Messages: []goopenai.ChatCompletionMessage{
				{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
			},
			Temperature: float32(req.Temperature),
			MaxTokens:   maxReplyTokens,
		})
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, provider.Upstream(c.Name(), err)
	}

	if len(resp.Choices) == 0 {
		return nil, provider.Upstream(c.Name(), fmt.Errorf("empty choices in response"))
	}

	canonical := extract.Parse(resp.Choices[0].Message.Content)
	return &provider.Reply{
		Text:           canonical.Text,
		Confidence:     canonical.Confidence,
		StructuredData: canonical.StructuredData,
	}, nil
}
