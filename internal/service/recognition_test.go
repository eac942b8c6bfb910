package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"
)

// pngImage returns a small decodable image so preprocessing has something
// to re-encode.
func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 20))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newRecognitionService(t *testing.T, backend *fakeBackend, c *memCache) *RecognitionService {
	t.Helper()
	return NewRecognitionService(testConfig(), testRegistry(backend, &fakeBackend{}), c, nil, testMetrics(t))
}

func TestRecognize(t *testing.T) {
	backend := &fakeBackend{reply: goodReply()}
	svc := newRecognitionService(t, backend, newMemCache())

	result, err := svc.Recognize(context.Background(), []byte("image-bytes"), "llava:latest", true)
	if err != nil {
		t.Fatal(err)
	}

	if result.Text != "Customer Name: John Smith" {
		t.Errorf("Text = %q", result.Text)
	}
	// 0.9 reported + one field bonus.
	if result.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", result.Confidence)
	}
	if result.Metadata.ModelName != "llava:latest" {
		t.Errorf("ModelName = %q", result.Metadata.ModelName)
	}
	if result.Metadata.ImageHash == "" {
		t.Error("expected image hash in metadata")
	}

	req := backend.lastRequest()
	if req.Model != "llava:latest" {
		t.Errorf("backend model = %q", req.Model)
	}
	if len(req.Image) == 0 {
		t.Error("expected image forwarded to backend")
	}
	if req.Prompt == "" {
		t.Error("expected recognition prompt")
	}
}

func TestRecognizeDefaultModel(t *testing.T) {
	backend := &fakeBackend{reply: goodReply()}
	svc := newRecognitionService(t, backend, newMemCache())

	result, err := svc.Recognize(context.Background(), []byte("image-bytes"), "", true)
	if err != nil {
		t.Fatal(err)
	}

	if got := backend.lastRequest().Model; got != testConfig().Models.Default {
		t.Errorf("backend model = %q, want config default", got)
	}
	if result.Metadata.ModelName != testConfig().Models.Default {
		t.Errorf("ModelName = %q", result.Metadata.ModelName)
	}
}

func TestRecognizeCaches(t *testing.T) {
	backend := &fakeBackend{reply: goodReply()}
	svc := newRecognitionService(t, backend, newMemCache())
	ctx := context.Background()
	image := []byte("image-bytes")

	first, err := svc.Recognize(ctx, image, "llava:latest", true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Recognize(ctx, image, "llava:latest", true)
	if err != nil {
		t.Fatal(err)
	}

	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want 1", backend.callCount())
	}
	if first.Text != second.Text || first.Confidence != second.Confidence {
		t.Error("cached result differs from original")
	}
}

func TestRecognizeCacheKeyedByModel(t *testing.T) {
	backend := &fakeBackend{reply: goodReply()}
	svc := newRecognitionService(t, backend, newMemCache())
	ctx := context.Background()
	image := []byte("image-bytes")

	if _, err := svc.Recognize(ctx, image, "llava:latest", true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Recognize(ctx, image, "bakllava", true); err != nil {
		t.Fatal(err)
	}

	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want one per model", backend.callCount())
	}
}

func TestRecognizeProviderError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	svc := newRecognitionService(t, backend, newMemCache())

	_, err := svc.Recognize(context.Background(), []byte("image-bytes"), "llava:latest", true)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "recognize with llava:latest") {
		t.Errorf("error = %v", err)
	}
}

func TestRecognizeErrorNotCached(t *testing.T) {
	backend := &fakeBackend{err: errors.New("boom")}
	c := newMemCache()
	svc := newRecognitionService(t, backend, c)
	ctx := context.Background()

	if _, err := svc.Recognize(ctx, []byte("image-bytes"), "llava:latest", true); err == nil {
		t.Fatal("expected error")
	}

	// The backend recovers; a retry must reach it.
	backend.err = nil
	backend.reply = goodReply()
	if _, err := svc.Recognize(ctx, []byte("image-bytes"), "llava:latest", true); err != nil {
		t.Fatal(err)
	}
	if backend.callCount() != 2 {
		t.Errorf("backend calls = %d, want 2", backend.callCount())
	}
}

func TestRecognizeStructuredFallback(t *testing.T) {
	// Backend reply has text with labeled fields but no structured data.
	backend := &fakeBackend{reply: goodReply()}
	backend.reply.StructuredData = nil
	svc := newRecognitionService(t, backend, newMemCache())

	result, err := svc.Recognize(context.Background(), []byte("image-bytes"), "llava:latest", true)
	if err != nil {
		t.Fatal(err)
	}

	if result.StructuredData["CustomerName"] != "John Smith" {
		t.Errorf("StructuredData = %v, want fallback-extracted fields", result.StructuredData)
	}
}

func TestRecognizePersists(t *testing.T) {
	backend := &fakeBackend{reply: goodReply()}
	store := &fakeStore{}
	svc := NewRecognitionService(testConfig(), testRegistry(backend, &fakeBackend{}), newMemCache(), store, testMetrics(t))

	if _, err := svc.Recognize(context.Background(), []byte("image-bytes"), "llava:latest", true); err != nil {
		t.Fatal(err)
	}

	if store.images != 1 || store.results != 1 {
		t.Errorf("store calls: images=%d results=%d, want 1 each", store.images, store.results)
	}
}

func TestRecognizePreprocessPerRequest(t *testing.T) {
	original := pngImage(t)

	backend := &fakeBackend{reply: goodReply()}
	svc := newRecognitionService(t, backend, newMemCache())
	if _, err := svc.Recognize(context.Background(), original, "llava:latest", false); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(backend.lastRequest().Image, original) {
		t.Error("preprocess disabled: backend must receive the original bytes")
	}

	backend = &fakeBackend{reply: goodReply()}
	svc = newRecognitionService(t, backend, newMemCache())
	if _, err := svc.Recognize(context.Background(), original, "llava:latest", true); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(backend.lastRequest().Image, original) {
		t.Error("preprocess enabled: backend must receive the processed image")
	}
}

func TestRecognizeCoalesces(t *testing.T) {
	backend := &fakeBackend{reply: goodReply(), delay: 50 * time.Millisecond}
	cfg := testConfig()
	cfg.Cache.Coalesce = true
	svc := NewRecognitionService(cfg, testRegistry(backend, &fakeBackend{}), newMemCache(), nil, testMetrics(t))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Recognize(context.Background(), []byte("image-bytes"), "llava:latest", true); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if backend.callCount() != 1 {
		t.Errorf("backend calls = %d, want coalesced single call", backend.callCount())
	}
}

func TestProcessImageQualityGate(t *testing.T) {
	t.Run("clean result passes", func(t *testing.T) {
		svc := newRecognitionService(t, &fakeBackend{reply: goodReply()}, newMemCache())
		out, err := svc.ProcessImage(context.Background(), []byte("image-bytes"), "", true)
		if err != nil {
			t.Fatal(err)
		}
		if out.Quality.NeedsReview {
			t.Errorf("NeedsReview = true, issues = %v", out.Quality.Issues)
		}
		if out.ModelUsed != testConfig().Models.Default {
			t.Errorf("ModelUsed = %q", out.ModelUsed)
		}
	})

	t.Run("weak result flagged", func(t *testing.T) {
		svc := newRecognitionService(t, &fakeBackend{reply: weakReply()}, newMemCache())
		out, err := svc.ProcessImage(context.Background(), []byte("image-bytes"), "", true)
		if err != nil {
			t.Fatal(err)
		}
		if !out.Quality.NeedsReview {
			t.Error("expected NeedsReview for short low-confidence text")
		}
		if len(out.Quality.Issues) == 0 {
			t.Error("expected recorded issues")
		}
	})
}
