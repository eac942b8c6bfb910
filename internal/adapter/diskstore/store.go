// Package diskstore implements the storage port on the local filesystem.
// Results live under <root>/results as one JSON document per save, named
// <hash>_<model>_<unix>.json; images live under <root>/images keyed by hash.
// Writes go through a temp file and rename so readers never observe a
// partial document.
package diskstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/inkwell-ai/inkwell/internal/port/storage"
)

// Store is the filesystem-backed artifact store.
type Store struct {
	resultsDir string
	imagesDir  string

	now func() time.Time
}

// New creates a Store rooted at dir, creating the layout if needed.
func New(dir string) (*Store, error) {
	s := &Store{
		resultsDir: filepath.Join(dir, "results"),
		imagesDir:  filepath.Join(dir, "images"),
		now:        time.Now,
	}
	for _, d := range []string{s.resultsDir, s.imagesDir} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return s, nil
}

// SaveResult implements storage.Store.
func (s *Store) SaveResult(_ context.Context, result any, imageHash, modelName string) (string, error) {
	ts := s.now().UTC()
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	doc := storage.StoredResult{
		Result: raw,
		Metadata: storage.Envelope{
			ImageHash: imageHash,
			ModelName: modelName,
			Timestamp: ts.Unix(),
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%d.json", imageHash, sanitize(modelName), ts.Unix())
	path := filepath.Join(s.resultsDir, name)
	if err := writeAtomic(s.resultsDir, path, data); err != nil {
		return "", err
	}
	return path, nil
}

// SaveImage implements storage.Store.
func (s *Store) SaveImage(_ context.Context, data []byte, imageHash string) (string, error) {
	path := filepath.Join(s.imagesDir, imageHash+".jpg")
	if err := writeAtomic(s.imagesDir, path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ResultsForImage implements storage.Store. Results come back newest first;
// unreadable or corrupt documents are skipped.
func (s *Store) ResultsForImage(_ context.Context, imageHash string) ([]storage.StoredResult, error) {
	matches, err := filepath.Glob(filepath.Join(s.resultsDir, imageHash+"_*.json"))
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	var results []storage.StoredResult
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var doc storage.StoredResult
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		results = append(results, doc)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Metadata.Timestamp > results[j].Metadata.Timestamp
	})
	return results, nil
}

// DeleteResultsForImage implements storage.Store.
func (s *Store) DeleteResultsForImage(_ context.Context, imageHash string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.resultsDir, imageHash+"_*.json"))
	if err != nil {
		return 0, fmt.Errorf("list results: %w", err)
	}

	deleted := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			return deleted, fmt.Errorf("delete result: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

// PruneOlderThan implements storage.Store.
func (s *Store) PruneOlderThan(_ context.Context, age time.Duration) (int, error) {
	entries, err := os.ReadDir(s.resultsDir)
	if err != nil {
		return 0, fmt.Errorf("list results: %w", err)
	}

	cutoff := s.now().Add(-age)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.resultsDir, entry.Name())); err != nil {
				return deleted, fmt.Errorf("prune result: %w", err)
			}
			deleted++
		}
	}
	return deleted, nil
}

func sanitize(name string) string {
	r := strings.NewReplacer("/", "-", ":", "-", " ", "-")
	return r.Replace(name)
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
