package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	otelx "github.com/inkwell-ai/inkwell/internal/adapter/otel"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/domain/recognition"
	"github.com/inkwell-ai/inkwell/internal/domain/review"
	"github.com/inkwell-ai/inkwell/internal/port/cache"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
)

// ReviewService runs the automated review pipeline: a text model audits a
// recognition result and may supply corrections. Review failures are folded
// into the result as a human-review request, never raised.
type ReviewService struct {
	registry *provider.Registry
	cache    cache.Cache
	metrics  *otelx.Metrics

	promptTemplate string
	defaultModel   string
	temperature    float64
	cacheTTL       time.Duration

	now func() time.Time // for testing
}

// NewReviewService creates a ReviewService with all dependencies.
func NewReviewService(
	cfg *config.Config,
	registry *provider.Registry,
	c cache.Cache,
	metrics *otelx.Metrics,
) *ReviewService {
	return &ReviewService{
		registry:       registry,
		cache:          c,
		metrics:        metrics,
		promptTemplate: cfg.Prompts.Review,
		defaultModel:   cfg.Models.DefaultReview,
		temperature:    cfg.Recognition.Temperature,
		cacheTTL:       cfg.Cache.TTL,
		now:            time.Now,
	}
}

// Review audits one recognition result with the given model (or the
// configured review default). Identical result+model pairs are served from
// cache. The returned result always routes somewhere: upstream failures come
// back as a human-review verdict carrying the error.
func (s *ReviewService) Review(ctx context.Context, rec *recognition.Result, model string) *review.Result {
	if model == "" {
		model = s.defaultModel
	}

	key := s.cacheKey(rec, model)
	if cached := s.lookupReview(ctx, key); cached != nil {
		slog.Info("review: cache hit", "image_hash", rec.Metadata.ImageHash, "model", model)
		return cached
	}

	backend := s.registry.Resolve(model)

	ctx, span := otelx.StartProviderSpan(ctx, backend.Name(), model)
	reply, err := backend.Generate(ctx, provider.Request{
		Model:       model,
		Prompt:      s.buildPrompt(rec),
		Temperature: s.temperature,
	})
	span.End()
	if err != nil {
		s.metrics.ProviderErrors.Add(ctx, 1)
		slog.Error("review: backend call failed", "model", model, "error", err)
		return &review.Result{
			NeedsHumanReview: true,
			Suggestions:      []string{},
			Explanation:      "Error during review: " + err.Error(),
			Err:              err.Error(),
			ModelUsed:        model,
			Timestamp:        s.now().UTC(),
		}
	}

	result := review.ParseResponse(reply.Text)
	result.ModelUsed = model
	result.Timestamp = s.now().UTC()

	s.cacheReview(ctx, key, result)
	s.metrics.Reviews.Add(ctx, 1)

	slog.Info("review: complete",
		"image_hash", rec.Metadata.ImageHash,
		"model", model,
		"needs_human_review", result.NeedsHumanReview,
		"suggestions", len(result.Suggestions))
	return result
}

// ProcessRecognition reviews a recognition result and routes it: corrections
// are applied only on the correct step, a flagged result keeps its original
// data for the human reviewer.
func (s *ReviewService) ProcessRecognition(ctx context.Context, rec *recognition.Result, model string) *review.Process {
	if model == "" {
		model = s.defaultModel
	}

	ctx, span := otelx.StartReviewSpan(ctx, model)
	defer span.End()

	verdict := s.Review(ctx, rec, model)
	next := review.DetermineNextStep(verdict)

	corrected := rec
	if next == review.StepCorrect {
		corrected = review.ApplyCorrections(rec, verdict)
	}

	return &review.Process{
		OriginalRecognition:  rec,
		Review:               verdict,
		CorrectedRecognition: corrected,
		NextStep:             next,
		ModelUsed:            model,
		Timestamp:            s.now().UTC(),
	}
}

// cacheKey derives the review cache key from the serialized recognition
// result, so any change to the input produces a fresh review.
func (s *ReviewService) cacheKey(rec *recognition.Result, model string) string {
	data, err := json.Marshal(rec)
	if err != nil {
		data = []byte(rec.Text)
	}
	return cache.Key("review", cache.HashContent(data), model)
}

func (s *ReviewService) lookupReview(ctx context.Context, key string) *review.Result {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("review: cache get", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var result review.Result
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("review: corrupt cache entry", "key", key, "error", err)
		return nil
	}
	s.metrics.CacheHits.Add(ctx, 1)
	return &result
}

func (s *ReviewService) cacheReview(ctx context.Context, key string, result *review.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("review: marshal for cache", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		slog.Warn("review: cache set", "key", key, "error", err)
	}
}

// buildPrompt fills the review template with the recognition under audit.
func (s *ReviewService) buildPrompt(rec *recognition.Result) string {
	structured := "None"
	if len(rec.StructuredData) > 0 {
		if data, err := json.MarshalIndent(rec.StructuredData, "", "  "); err == nil {
			structured = string(data)
		}
	}

	r := strings.NewReplacer(
		"{extracted_text}", rec.Text,
		"{confidence}", strconv.FormatFloat(rec.Confidence, 'g', -1, 64),
		"{structured_data}", structured,
	)
	return r.Replace(s.promptTemplate)
}
