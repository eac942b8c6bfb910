// Package config provides hierarchical configuration loading for Inkwell.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the Inkwell service.
type Config struct {
	Server      Server      `yaml:"server"`
	Providers   Providers   `yaml:"providers"`
	Models      Models      `yaml:"models"`
	Recognition Recognition `yaml:"recognition"`
	Cache       Cache       `yaml:"cache"`
	Storage     Storage     `yaml:"storage"`
	Prompts     Prompts     `yaml:"prompts"`
	Logging     Logging     `yaml:"logging"`
	Breaker     Breaker     `yaml:"breaker"`
	Telemetry   Telemetry   `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Providers holds upstream model backend endpoints and credentials.
type Providers struct {
	OllamaBaseURL string `yaml:"ollama_base_url"`
	GroqBaseURL   string `yaml:"groq_base_url"`
	ClaudeBaseURL string `yaml:"claude_base_url"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	GroqAPIKey    string `yaml:"groq_api_key"`
	ClaudeAPIKey  string `yaml:"claude_api_key"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
}

// Models holds model selection configuration.
type Models struct {
	Default         string   `yaml:"default"`
	DefaultReview   string   `yaml:"default_review"`
	SupportedOllama []string `yaml:"supported_ollama"`
}

// Recognition holds recognition pipeline configuration.
type Recognition struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	Timeout             time.Duration `yaml:"timeout"`
	Temperature         float64       `yaml:"temperature"`
	Preprocess          bool          `yaml:"preprocess"`
}

// Cache holds the two-tier result cache configuration.
type Cache struct {
	Enabled     bool          `yaml:"enabled"`
	TTL         time.Duration `yaml:"ttl"`
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	L1Backfill  time.Duration `yaml:"l1_backfill"`
	L2Backend   string        `yaml:"l2_backend"` // "disk" | "natskv"
	Dir         string        `yaml:"dir"`
	NATSURL     string        `yaml:"nats_url"`
	NATSBucket  string        `yaml:"nats_bucket"`
	Coalesce    bool          `yaml:"coalesce"`
}

// Storage holds artifact persistence configuration.
type Storage struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Prompts holds the model prompt templates. The review template uses
// {extracted_text}, {confidence} and {structured_data} placeholders.
type Prompts struct {
	Recognition string `yaml:"recognition"`
	Review      string `yaml:"review"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Telemetry holds OpenTelemetry export configuration. An empty endpoint
// disables export.
type Telemetry struct {
	Endpoint string `yaml:"endpoint"`
}

const defaultRecognitionPrompt = `1. **Extract all handwritten text** from the image.
2. **Identify structured fields** such as:
    - Customer Name
    - Customer ID
    - Division ID
    - Department ID
    - Record Code
    - SKP Box Number
    - Reference
    - Major Description
    - Preparer's Name
    - Date
    - Telephone
    - Floor
3. Provide your confidence level (0-100%) in your transcription
4. **Format your response as JSON** with the following keys:
    - "text" -> The extracted text
    - "confidence" -> Your confidence score (0-100%) in text accuracy
    - "structured_data" -> A dictionary with identified fields
`

const defaultReviewPrompt = `You are a review agent for handwritten text recognition. Your task is to:

1. Carefully examine the extracted text and structured data.
2. Identify any potential errors or ambiguities.
3. Suggest corrections if confidence is low or errors are detected.
4. Determine if human review is necessary.

Original extracted text: {extracted_text}
Confidence score: {confidence}
Structured data: {structured_data}

Please provide your assessment as JSON with the following fields:
- "needs_human_review": boolean indicating if human review is needed
- "suggestions": a list of suggested corrections
- "explanation": reasoning behind your assessment
- "corrected_text": your corrected version of the text
- "corrected_structured_data": your corrected version of the structured data
`

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Providers: Providers{
			OllamaBaseURL: "http://localhost:11434",
			GroqBaseURL:   "https://api.groq.com/openai/v1",
			ClaudeBaseURL: "https://api.anthropic.com",
			OpenAIBaseURL: "https://api.openai.com/v1",
		},
		Models: Models{
			Default:       "llava:latest",
			DefaultReview: "gpt-4o",
			SupportedOllama: []string{
				"llava:latest", "bakllava:latest", "llava:13b", "llava:7b", "cogvlm-lite:latest",
			},
		},
		Recognition: Recognition{
			ConfidenceThreshold: 0.7,
			Timeout:             30 * time.Second,
			Temperature:         0.7,
			Preprocess:          true,
		},
		Cache: Cache{
			Enabled:     true,
			TTL:         time.Hour,
			L1MaxSizeMB: 64,
			L1Backfill:  5 * time.Minute,
			L2Backend:   "disk",
			Dir:         "./cache",
			NATSURL:     "nats://localhost:4222",
			NATSBucket:  "inkwell-results",
		},
		Storage: Storage{
			Enabled: true,
			Path:    "./storage",
		},
		Prompts: Prompts{
			Recognition: defaultRecognitionPrompt,
			Review:      defaultReviewPrompt,
		},
		Logging: Logging{
			Level:   "info",
			Service: "inkwell",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
