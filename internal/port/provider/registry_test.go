package provider

import (
	"context"
	"testing"
)

type fakeProvider struct {
	name string
}

func (f *fakeProvider) Name() string                { return f.name }
func (f *fakeProvider) SupportsImage(_ string) bool { return false }
func (f *fakeProvider) Generate(_ context.Context, _ Request) (*Reply, error) {
	return &Reply{Text: f.name}, nil
}

func newTestRegistry() *Registry {
	r := NewRegistry(BackendOllama, []string{"llava:latest", "llama3.2-vision"})
	for _, name := range []string{BackendOllama, BackendGroq, BackendAnthropic, BackendOpenAI} {
		r.Register(&fakeProvider{name: name})
	}
	return r
}

func TestResolve(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		model string
		want  string
	}{
		{"llama-3.2-vision-preview", BackendGroq},
		{"llama3.2-vision", BackendGroq}, // vision rule beats the known-local list
		{"llava:latest", BackendOllama},
		{"llava:13b", BackendOllama},
		{"bakllava", BackendOllama},
		{"llama-3-70b", BackendGroq},
		{"mixtral-8x7b", BackendGroq},
		{"claude-3-haiku", BackendAnthropic},
		{"gpt-4o", BackendOpenAI},
		{"gpt-3.5-turbo", BackendOpenAI},
		{"text-davinci-003", BackendOpenAI},
		{"unknown-model", BackendOllama},
		{"", BackendOllama},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got := r.Resolve(tt.model)
			if got == nil {
				t.Fatal("Resolve returned nil")
			}
			if got.Name() != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.model, got.Name(), tt.want)
			}
		})
	}
}

func TestResolveUnregisteredBackendFallsBack(t *testing.T) {
	r := NewRegistry(BackendOllama, nil)
	r.Register(&fakeProvider{name: BackendOllama})

	// claude resolves to anthropic, which is not registered.
	got := r.Resolve("claude-3-haiku")
	if got == nil || got.Name() != BackendOllama {
		t.Errorf("expected fallback to ollama, got %v", got)
	}
}

func TestGet(t *testing.T) {
	r := newTestRegistry()

	p, err := r.Get(BackendGroq)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != BackendGroq {
		t.Errorf("Get = %s", p.Name())
	}

	if _, err := r.Get("nonexistent"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNamesSorted(t *testing.T) {
	r := newTestRegistry()

	names := r.Names()
	want := []string{BackendAnthropic, BackendGroq, BackendOllama, BackendOpenAI}
	if len(names) != len(want) {
		t.Fatalf("Names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()

	r := NewRegistry(BackendOllama, nil)
	r.Register(&fakeProvider{name: BackendOllama})
	r.Register(&fakeProvider{name: BackendOllama})
}
