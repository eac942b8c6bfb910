// Package service wires the domain pipelines to their ports: providers,
// caching, storage and telemetry.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	otelx "github.com/inkwell-ai/inkwell/internal/adapter/otel"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/domain/extract"
	"github.com/inkwell-ai/inkwell/internal/domain/recognition"
	"github.com/inkwell-ai/inkwell/internal/imaging"
	"github.com/inkwell-ai/inkwell/internal/port/cache"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
	"github.com/inkwell-ai/inkwell/internal/port/storage"
)

// RecognitionService runs the recognition pipeline: preprocess, dispatch to
// the resolved backend, normalize, score, cache and persist.
type RecognitionService struct {
	registry *provider.Registry
	cache    cache.Cache
	store    storage.Store // nil when persistence is disabled
	metrics  *otelx.Metrics

	prompt       string
	defaultModel string
	threshold    float64
	temperature  float64
	cacheTTL     time.Duration

	// Coalesces concurrent recognitions of the same image+model onto a
	// single backend call when enabled.
	coalesce bool
	group    singleflight.Group

	now func() time.Time // for testing
}

// NewRecognitionService creates a RecognitionService with all dependencies.
func NewRecognitionService(
	cfg *config.Config,
	registry *provider.Registry,
	c cache.Cache,
	store storage.Store,
	metrics *otelx.Metrics,
) *RecognitionService {
	return &RecognitionService{
		registry:     registry,
		cache:        c,
		store:        store,
		metrics:      metrics,
		prompt:       cfg.Prompts.Recognition,
		defaultModel: cfg.Models.Default,
		threshold:    cfg.Recognition.ConfidenceThreshold,
		temperature:  cfg.Recognition.Temperature,
		cacheTTL:     cfg.Cache.TTL,
		coalesce:     cfg.Cache.Coalesce,
		now:          time.Now,
	}
}

// Threshold returns the configured confidence threshold for quality gating.
func (s *RecognitionService) Threshold() float64 { return s.threshold }

// Recognize transcribes the handwriting in image using the given model (or
// the configured default). preprocess controls per-call whether the image is
// cleaned up before dispatch. Identical image+model pairs are served from
// cache.
func (s *RecognitionService) Recognize(ctx context.Context, image []byte, model string, preprocess bool) (*recognition.Result, error) {
	if model == "" {
		model = s.defaultModel
	}

	hash := imaging.Hash(image)
	key := cache.Key("recognition", hash, model)

	if cached := s.lookup(ctx, key); cached != nil {
		slog.Info("recognition: cache hit", "image_hash", hash, "model", model)
		return cached, nil
	}
	s.metrics.CacheMisses.Add(ctx, 1)

	if !s.coalesce {
		return s.recognize(ctx, image, hash, model, key, preprocess)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.recognize(ctx, image, hash, model, key, preprocess)
	})
	if err != nil {
		return nil, err
	}
	// Each caller gets its own copy so no one can mutate a shared result.
	return v.(*recognition.Result).Clone(), nil
}

// ProcessImage runs recognition and derives the quality gate. This is the
// entry point the workflow orchestrator uses.
func (s *RecognitionService) ProcessImage(ctx context.Context, image []byte, model string, preprocess bool) (*recognition.Output, error) {
	if model == "" {
		model = s.defaultModel
	}

	ctx, span := otelx.StartRecognitionSpan(ctx, imaging.Hash(image), model)
	defer span.End()

	result, err := s.Recognize(ctx, image, model, preprocess)
	if err != nil {
		return nil, err
	}

	return &recognition.Output{
		Recognition: result,
		Quality:     recognition.EvaluateQuality(result, s.threshold),
		ModelUsed:   model,
		Timestamp:   s.now().UTC(),
	}, nil
}

func (s *RecognitionService) lookup(ctx context.Context, key string) *recognition.Result {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("recognition: cache get", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var result recognition.Result
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("recognition: corrupt cache entry", "key", key, "error", err)
		return nil
	}
	s.metrics.CacheHits.Add(ctx, 1)
	return &result
}

func (s *RecognitionService) recognize(ctx context.Context, image []byte, hash, model, key string, preprocess bool) (*recognition.Result, error) {
	input := image
	if preprocess {
		input = imaging.Preprocess(image)
	}

	backend := s.registry.Resolve(model)

	ctx, span := otelx.StartProviderSpan(ctx, backend.Name(), model)
	reply, err := backend.Generate(ctx, provider.Request{
		Model:       model,
		Prompt:      s.prompt,
		Image:       input,
		Temperature: s.temperature,
	})
	span.End()
	if err != nil {
		s.metrics.ProviderErrors.Add(ctx, 1)
		return nil, fmt.Errorf("recognize with %s: %w", model, err)
	}

	structured := reply.StructuredData
	if len(structured) == 0 {
		structured = extract.Fields(reply.Text)
	}

	result := &recognition.Result{
		Text:           reply.Text,
		Confidence:     recognition.CalculateConfidence(reply.Confidence, reply.Text, len(structured)),
		StructuredData: structured,
		Metadata: recognition.Metadata{
			ImageHash: hash,
			ModelName: model,
			Timestamp: s.now().UTC(),
			ImageInfo: imaging.Metadata(image),
		},
	}

	s.cacheResult(ctx, key, result)
	s.persist(ctx, image, result, hash, model)

	s.metrics.Recognitions.Add(ctx, 1)
	s.metrics.RecognitionScores.Record(ctx, result.Confidence)

	slog.Info("recognition: complete",
		"image_hash", hash,
		"model", model,
		"confidence", result.Confidence,
		"fields", len(structured))
	return result, nil
}

func (s *RecognitionService) cacheResult(ctx context.Context, key string, result *recognition.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("recognition: marshal for cache", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		slog.Warn("recognition: cache set", "key", key, "error", err)
	}
}

// persist is best effort: storage failures never fail the recognition.
func (s *RecognitionService) persist(ctx context.Context, image []byte, result *recognition.Result, hash, model string) {
	if s.store == nil {
		return
	}

	if _, err := s.store.SaveImage(ctx, image, hash); err != nil {
		slog.Warn("recognition: save image", "image_hash", hash, "error", err)
	}
	if _, err := s.store.SaveResult(ctx, result, hash, model); err != nil {
		slog.Warn("recognition: save result", "image_hash", hash, "error", err)
	}
}
