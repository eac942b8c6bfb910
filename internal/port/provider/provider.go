// Package provider defines the backend adapter port and the registry that
// maps model identifiers to adapters.
package provider

import "context"

// Request is one generation request to a language-model backend. Image is
// optional and only honored by multimodal backends.
type Request struct {
	Model       string
	Prompt      string
	Image       []byte
	Temperature float64
}

// Reply is the canonical triple every backend reply is normalized into.
type Reply struct {
	Text           string            `json:"text"`
	Confidence     float64           `json:"confidence"`
	StructuredData map[string]string `json:"structured_data"`
}

// Provider is the port interface for a language-model backend adapter. Each
// adapter owns its wire format, request timeout, and reply normalization.
type Provider interface {
	// Name returns the backend identifier (e.g. "ollama", "groq").
	Name() string

	// SupportsImage reports whether the backend accepts image input for
	// the given model identifier.
	SupportsImage(model string) bool

	// Generate sends the prompt (and optional image) and returns the
	// normalized reply. Network and status failures are returned as
	// *UpstreamError; a missing credential as ErrMissingCredential.
	Generate(ctx context.Context, req Request) (*Reply, error)
}
