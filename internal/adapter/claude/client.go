// Package claude implements the provider port for the Anthropic Messages
// API. Text-only: recognition images are routed to the multimodal backends,
// Claude handles the review step.
package claude

import (
	"context"
	"fmt"
	"net/http"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/inkwell-ai/inkwell/internal/domain/extract"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
	"github.com/inkwell-ai/inkwell/internal/resilience"
)

const maxReplyTokens = 1000

// Client talks to the Anthropic Messages API.
type Client struct {
	api     anthropicsdk.Client
	hasKey  bool
	breaker *resilience.Breaker
}

// NewClient creates a Claude client. An empty apiKey is allowed at
// construction; Generate then fails with ErrMissingCredential.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		api:    anthropicsdk.NewClient(opts...),
		hasKey: apiKey != "",
	}
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Name implements provider.Provider.
func (c *Client) Name() string { return provider.BackendAnthropic }

// SupportsImage implements provider.Provider.
func (c *Client) SupportsImage(string) bool { return false }

// Generate sends a text prompt through the Messages API and normalizes the
// reply into the canonical triple.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Reply, error) {
	if !c.hasKey {
		return nil, fmt.Errorf("claude: %w", provider.ErrMissingCredential)
	}

	var message *anthropicsdk.Message
	call := func() error {
		var err error
		message, err = c.api.Messages.New(ctx, anthropicsdk.MessageNewParams{
			Model:       anthropicsdk.Model(req.Model),
			MaxTokens:   maxReplyTokens,
			Temperature: anthropicsdk.Float(req.Temperature),
			Messages: []anthropicsdk.MessageParam{
				anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(req.Prompt)),
			},
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

	for _, block := range message.Content {
		if block.Type == "text" {
			canonical := extract.Parse(block.Text)
			return &provider.Reply{
				Text:           canonical.Text,
				Confidence:     canonical.Confidence,
				StructuredData: canonical.StructuredData,
			}, nil
		}
	}
	return nil, provider.Upstream(c.Name(), fmt.Errorf("no text content in response"))
}
