package service

import (
	"context"
	"sync"
	"testing"
	"time"

	otelx "github.com/inkwell-ai/inkwell/internal/adapter/otel"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/port/provider"
	"github.com/inkwell-ai/inkwell/internal/port/storage"
)

// memCache is a simple in-memory cache for testing.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

func (m *memCache) hasKey(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// fakeBackend is a configurable provider.Provider for testing.
type fakeBackend struct {
	mu      sync.Mutex
	name    string
	reply   *provider.Reply
	err     error
	calls   int
	lastReq provider.Request
	delay   time.Duration
}

func (f *fakeBackend) Name() string              { return f.name }
func (f *fakeBackend) SupportsImage(string) bool { return true }

func (f *fakeBackend) Generate(_ context.Context, req provider.Request) (*provider.Reply, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	r := *f.reply
	return &r, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) lastRequest() provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

// fakeStore counts storage calls.
type fakeStore struct {
	mu      sync.Mutex
	images  int
	results int
}

func (f *fakeStore) SaveResult(_ context.Context, _ any, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results++
	return "path", nil
}

func (f *fakeStore) SaveImage(_ context.Context, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images++
	return "path", nil
}

func (f *fakeStore) ResultsForImage(_ context.Context, _ string) ([]storage.StoredResult, error) {
	return nil, nil
}

func (f *fakeStore) DeleteResultsForImage(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (f *fakeStore) PruneOlderThan(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	return &cfg
}

func testMetrics(t *testing.T) *otelx.Metrics {
	t.Helper()
	m, err := otelx.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// testRegistry wires one fake per backend the tests route to: recognition
// models resolve to ollama, review models (gpt-*) to openai.
func testRegistry(rec, rev *fakeBackend) *provider.Registry {
	rec.name = provider.BackendOllama
	rev.name = provider.BackendOpenAI

	r := provider.NewRegistry(provider.BackendOllama, []string{"llava:latest"})
	r.Register(rec)
	r.Register(rev)
	return r
}

// goodReply is a recognition reply that passes the quality gate.
func goodReply() *provider.Reply {
	return &provider.Reply{
		Text:           "Customer Name: John Smith",
		Confidence:     0.9,
		StructuredData: map[string]string{"CustomerName": "John Smith"},
	}
}

// weakReply is a recognition reply that trips the quality gate.
func weakReply() *provider.Reply {
	return &provider.Reply{
		Text:       "short",
		Confidence: 0.5,
	}
}
