package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/inkwell-ai/inkwell/internal/domain/review"
	"github.com/inkwell-ai/inkwell/internal/domain/workflow"
	"github.com/inkwell-ai/inkwell/internal/imaging"
	"github.com/inkwell-ai/inkwell/internal/port/cache"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
)

type workflowFixture struct {
	svc   *WorkflowService
	rec   *fakeBackend
	rev   *fakeBackend
	cache *memCache
	store *fakeStore
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	rec := &fakeBackend{reply: goodReply()}
	rev := &fakeBackend{reply: &provider.Reply{Text: `{"needs_human_review": false}`}}
	registry := testRegistry(rec, rev)

	cfg := testConfig()
	c := newMemCache()
	store := &fakeStore{}
	metrics := testMetrics(t)

	recSvc := NewRecognitionService(cfg, registry, c, nil, metrics)
	revSvc := NewReviewService(cfg, registry, c, metrics)

	return &workflowFixture{
		svc:   NewWorkflowService(cfg, recSvc, revSvc, c, store, metrics),
		rec:   rec,
		rev:   rev,
		cache: c,
		store: store,
	}
}

func TestWorkflowApprovesCleanResult(t *testing.T) {
	f := newWorkflowFixture(t)

	result := f.svc.ProcessImage(context.Background(), []byte("image-bytes"), "", "", true, false)

	if result.Error != "" {
		t.Fatalf("Error = %q", result.Error)
	}
	if result.NextStep != review.StepApprove {
		t.Errorf("NextStep = %q, want approve", result.NextStep)
	}
	if result.Review != nil {
		t.Error("clean result should not be reviewed")
	}
	if f.rev.callCount() != 0 {
		t.Errorf("review backend calls = %d, want 0", f.rev.callCount())
	}
	if result.FinalResult == nil || result.FinalResult.Text != "Customer Name: John Smith" {
		t.Errorf("FinalResult = %+v", result.FinalResult)
	}
	if _, ok := result.ProcessingTimes["recognition"]; !ok {
		t.Error("missing recognition timing")
	}
	if result.ModelsUsed["recognition"] == "" {
		t.Error("missing recognition model")
	}
}

func TestWorkflowReviewsWeakResult(t *testing.T) {
	f := newWorkflowFixture(t)
	f.rec.reply = weakReply()
	f.rev.reply = &provider.Reply{
		Text: `{"needs_human_review": false, "corrected_text": "a corrected transcription"}`,
	}

	result := f.svc.ProcessImage(context.Background(), []byte("image-bytes"), "", "", true, false)

	if f.rev.callCount() != 1 {
		t.Fatalf("review backend calls = %d, want 1", f.rev.callCount())
	}
	if result.Review == nil {
		t.Fatal("expected review data")
	}
	if result.NextStep != review.StepCorrect {
		t.Errorf("NextStep = %q, want correct", result.NextStep)
	}
	if result.FinalResult.Text != "a corrected transcription" {
		t.Errorf("FinalResult.Text = %q, want corrected", result.FinalResult.Text)
	}
	if result.ModelsUsed["review"] == "" {
		t.Error("missing review model")
	}
	if _, ok := result.ProcessingTimes["review"]; !ok {
		t.Error("missing review timing")
	}
}

func TestWorkflowSkipReview(t *testing.T) {
	f := newWorkflowFixture(t)
	f.rec.reply = weakReply()

	result := f.svc.ProcessImage(context.Background(), []byte("image-bytes"), "", "", true, true)

	if f.rev.callCount() != 0 {
		t.Errorf("review backend calls = %d, want 0 with skip", f.rev.callCount())
	}
	if result.NextStep != review.StepApprove {
		t.Errorf("NextStep = %q, want approve", result.NextStep)
	}
}

func TestWorkflowPreprocessForwarded(t *testing.T) {
	original := pngImage(t)
	f := newWorkflowFixture(t)

	f.svc.ProcessImage(context.Background(), original, "", "", false, true)

	if !bytes.Equal(f.rec.lastRequest().Image, original) {
		t.Error("preprocess disabled: recognition backend must receive the original bytes")
	}
}

func TestWorkflowRecognitionErrorFolded(t *testing.T) {
	f := newWorkflowFixture(t)
	f.rec.err = errors.New("backend down")

	result := f.svc.ProcessImage(context.Background(), []byte("image-bytes"), "", "", true, false)

	if result.Error == "" {
		t.Fatal("expected folded error")
	}
	if result.Timestamp.IsZero() {
		t.Error("expected timestamp on failed result")
	}
	if result.FinalResult != nil {
		t.Error("failed workflow should carry no final result")
	}
}

func TestWorkflowCached(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	image := []byte("image-bytes")

	first := f.svc.ProcessImage(ctx, image, "", "", true, false)
	second := f.svc.ProcessImage(ctx, image, "", "", true, false)

	if f.rec.callCount() != 1 {
		t.Errorf("recognition backend calls = %d, want 1", f.rec.callCount())
	}
	if first.NextStep != second.NextStep {
		t.Error("cached workflow differs")
	}
}

func TestWorkflowCacheKeyedByModels(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	image := []byte("image-bytes")

	f.svc.ProcessImage(ctx, image, "llava:latest", "", true, false)
	f.svc.ProcessImage(ctx, image, "bakllava", "", true, false)

	if f.rec.callCount() != 2 {
		t.Errorf("recognition backend calls = %d, want one per model", f.rec.callCount())
	}
}

func TestWorkflowHumanReviewTerminal(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	image := []byte("image-bytes")

	wf := f.svc.ProcessImage(ctx, image, "", "", true, false)
	if wf.Error != "" {
		t.Fatal(wf.Error)
	}

	text := "the human's final word"
	merged, err := f.svc.HumanReview(ctx, wf, workflow.HumanCorrections{Text: &text})
	if err != nil {
		t.Fatal(err)
	}
	if !merged.HumanReviewApplied {
		t.Error("expected HumanReviewApplied")
	}
	if merged.NextStep != review.StepComplete {
		t.Errorf("NextStep = %q, want complete", merged.NextStep)
	}
	if merged.FinalResult.Text != text {
		t.Errorf("FinalResult.Text = %q", merged.FinalResult.Text)
	}

	// The merge is cached under the terminal key.
	hash := imaging.Hash(image)
	if !f.cache.hasKey(cache.Key("workflow", hash, "human_reviewed")) {
		t.Error("expected terminal cache entry")
	}

	// Subsequent runs return the human-reviewed result, regardless of the
	// models requested, without touching the backends.
	recCalls := f.rec.callCount()
	again := f.svc.ProcessImage(ctx, image, "bakllava", "gpt-4o", true, false)
	if !again.HumanReviewApplied {
		t.Error("expected the human-reviewed result back")
	}
	if again.FinalResult.Text != text {
		t.Errorf("FinalResult.Text = %q, want human text", again.FinalResult.Text)
	}
	if f.rec.callCount() != recCalls {
		t.Error("terminal workflow must not rerun recognition")
	}
}

func TestWorkflowHumanReviewPersisted(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	wf := f.svc.ProcessImage(ctx, []byte("image-bytes"), "", "", true, false)
	text := "corrected"
	if _, err := f.svc.HumanReview(ctx, wf, workflow.HumanCorrections{Text: &text}); err != nil {
		t.Fatal(err)
	}

	if f.store.results != 1 {
		t.Errorf("stored results = %d, want 1", f.store.results)
	}
}

func TestWorkflowHumanReviewValidation(t *testing.T) {
	f := newWorkflowFixture(t)

	wf := f.svc.ProcessImage(context.Background(), []byte("image-bytes"), "", "", true, false)

	_, err := f.svc.HumanReview(context.Background(), wf, workflow.HumanCorrections{})
	if err == nil {
		t.Fatal("expected validation error for empty corrections")
	}

	bad := 1.5
	_, err = f.svc.HumanReview(context.Background(), wf, workflow.HumanCorrections{Confidence: &bad})
	if err == nil {
		t.Fatal("expected validation error for out-of-range confidence")
	}
}
