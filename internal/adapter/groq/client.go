// Package groq implements the provider port for the Groq API. Groq speaks
// the OpenAI chat-completions wire format, so the adapter reuses the OpenAI
// client library with Groq's base URL. Vision models accept the image as a
// base64 data-URL content part.
package groq

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/inkwell-ai/inkwell/internal/domain/extract"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
	"github.com/inkwell-ai/inkwell/internal/resilience"
)

const maxReplyTokens = 1000

// Client talks to the Groq chat-completions API.
type Client struct {
	api     *goopenai.Client
	hasKey  bool
	breaker *resilience.Breaker
}

// NewClient creates a Groq client. An empty apiKey is allowed at
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
func (c *Client) Name() string { return provider.BackendGroq }

// SupportsImage reports true only for vision model variants.
func (c *Client) SupportsImage(model string) bool {
	return strings.Contains(model, "vision")
}

// Generate sends the prompt through the chat-completions API and normalizes
// the reply into the canonical triple.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Reply, error) {
	if !c.hasKey {
		return nil, fmt.Errorf("groq: %w", provider.ErrMissingCredential)
	}

	msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	if len(req.Image) > 0 && c.SupportsImage(req.Model) {
		encoded := base64.StdEncoding.EncodeToString(req.Image)
		msg.MultiContent = []goopenai.ChatMessagePart{
			{
				Type: goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{
					URL: "data:image/jpeg;base64," + encoded,
				},
			},
			{
				Type: goopenai.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
		}
	} else {
		msg.Content = req.Prompt
	}

	var resp goopenai.ChatCompletionResponse
	call := func() error {
		var err error
		resp, err = c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model:       req.Model,
			Messages:    []goopenai.ChatCompletionMessage{msg},
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
