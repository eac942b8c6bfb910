package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	otelx "github.com/inkwell-ai/inkwell/internal/adapter/otel"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/domain/review"
	"github.com/inkwell-ai/inkwell/internal/domain/workflow"
	"github.com/inkwell-ai/inkwell/internal/imaging"
	"github.com/inkwell-ai/inkwell/internal/port/cache"
	"github.com/inkwell-ai/inkwell/internal/port/storage"
)

// humanReviewedLabel marks the terminal cache entry and storage artifacts a
// workflow produces after human corrections.
const humanReviewedLabel = "human_reviewed"

// WorkflowService orchestrates the full recognition-review pipeline and the
// human-review finalization. Workflow failures are folded into the result's
// Error field, never raised to HTTP.
type WorkflowService struct {
	recognition *RecognitionService
	review      *ReviewService
	cache       cache.Cache
	store       storage.Store // nil when persistence is disabled
	metrics     *otelx.Metrics

	defaultModel       string
	defaultReviewModel string
	cacheTTL           time.Duration

	now func() time.Time // for testing
}

// NewWorkflowService creates a WorkflowService with all dependencies.
func NewWorkflowService(
	cfg *config.Config,
	rec *RecognitionService,
	rev *ReviewService,
	c cache.Cache,
	store storage.Store,
	metrics *otelx.Metrics,
) *WorkflowService {
	return &WorkflowService{
		recognition:        rec,
		review:             rev,
		cache:              c,
		store:              store,
		metrics:            metrics,
		defaultModel:       cfg.Models.Default,
		defaultReviewModel: cfg.Models.DefaultReview,
		cacheTTL:           cfg.Cache.TTL,
		now:                time.Now,
	}
}

// ProcessImage runs recognition, gates on quality, and reviews when the gate
// demands it. A workflow finalized by a human is terminal: its stored result
// is returned as-is and the pipeline never reruns for that image.
func (s *WorkflowService) ProcessImage(ctx context.Context, image []byte, recModel, revModel string, preprocess, skipReview bool) *workflow.Result {
	hash := imaging.Hash(image)

	ctx, span := otelx.StartWorkflowSpan(ctx, hash)
	defer span.End()

	if final := s.lookupWorkflow(ctx, cache.Key("workflow", hash, humanReviewedLabel)); final != nil {
		slog.Info("workflow: returning human-reviewed result", "image_hash", hash)
		return final
	}

	key := cache.Key("workflow", hash, orDefault(recModel), orDefault(revModel))
	if cached := s.lookupWorkflow(ctx, key); cached != nil {
		slog.Info("workflow: cache hit", "image_hash", hash)
		return cached
	}

	recStart := s.now()
	recOut, err := s.recognition.ProcessImage(ctx, image, recModel, preprocess)
	if err != nil {
		slog.Error("workflow: recognition failed", "image_hash", hash, "error", err)
		return &workflow.Result{
			Error:     err.Error(),
			Timestamp: s.now().UTC(),
		}
	}
	recSecs := s.now().Sub(recStart).Seconds()
	s.recordStage(ctx, "recognition", recSecs)

	var result *workflow.Result
	if !skipReview && recOut.Quality.NeedsReview {
		revStart := s.now()
		revProc := s.review.ProcessRecognition(ctx, recOut.Recognition, revModel)
		revSecs := s.now().Sub(revStart).Seconds()
		s.recordStage(ctx, "review", revSecs)

		result = &workflow.Result{
			Recognition: recOut,
			Review:      revProc,
			FinalResult: revProc.CorrectedRecognition,
			NextStep:    revProc.NextStep,
			ProcessingTimes: map[string]float64{
				"recognition": recSecs,
				"review":      revSecs,
				"total":       recSecs + revSecs,
			},
			ModelsUsed: map[string]string{
				"recognition": pick(recModel, s.defaultModel),
				"review":      pick(revModel, s.defaultReviewModel),
			},
			Timestamp: s.now().UTC(),
		}
	} else {
		result = &workflow.Result{
			Recognition: recOut,
			FinalResult: recOut.Recognition,
			NextStep:    review.StepApprove,
			ProcessingTimes: map[string]float64{
				"recognition": recSecs,
				"total":       recSecs,
			},
			ModelsUsed: map[string]string{
				"recognition": pick(recModel, s.defaultModel),
			},
			Timestamp: s.now().UTC(),
		}
	}

	s.cacheWorkflow(ctx, key, result)
	s.metrics.Workflows.Add(ctx, 1)

	slog.Info("workflow: complete",
		"image_hash", hash,
		"next_step", result.NextStep,
		"total_seconds", result.ProcessingTimes["total"])
	return result
}

// HumanReview merges human corrections into a workflow result and finalizes
// it. The merged result is cached under the terminal key so subsequent
// ProcessImage calls for the same image return it directly.
func (s *WorkflowService) HumanReview(ctx context.Context, wf *workflow.Result, corr workflow.HumanCorrections) (*workflow.Result, error) {
	if err := corr.Validate(); err != nil {
		return nil, fmt.Errorf("human review: %w", err)
	}

	merged := workflow.MergeHumanReview(wf, corr, s.now().UTC())

	hash := merged.ImageHash()
	if hash == "" {
		slog.Warn("workflow: human review on result without image hash")
		return merged, nil
	}

	s.cacheWorkflow(ctx, cache.Key("workflow", hash, humanReviewedLabel), merged)

	if s.store != nil {
		if _, err := s.store.SaveResult(ctx, merged, hash, humanReviewedLabel); err != nil {
			slog.Warn("workflow: save human-reviewed result", "image_hash", hash, "error", err)
		}
	}

	slog.Info("workflow: human review applied", "image_hash", hash)
	return merged, nil
}

func (s *WorkflowService) lookupWorkflow(ctx context.Context, key string) *workflow.Result {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("workflow: cache get", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var result workflow.Result
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("workflow: corrupt cache entry", "key", key, "error", err)
		return nil
	}
	s.metrics.CacheHits.Add(ctx, 1)
	return &result
}

func (s *WorkflowService) cacheWorkflow(ctx context.Context, key string, result *workflow.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("workflow: marshal for cache", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		slog.Warn("workflow: cache set", "key", key, "error", err)
	}
}

func (s *WorkflowService) recordStage(ctx context.Context, stage string, secs float64) {
	s.metrics.StageDuration.Record(ctx, secs,
		metric.WithAttributes(attribute.String("stage", stage)))
}

// orDefault is the cache key label for an unspecified model.
func orDefault(model string) string {
	if model == "" {
		return "default"
	}
	return model
}

func pick(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}
