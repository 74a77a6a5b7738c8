package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"loan-desk-backend/internal/logfields"
	"loan-desk-backend/internal/metrics"
)

// DefaultTimeout bounds every access to the shared location.
const DefaultTimeout = 2500 * time.Millisecond

// Options configures a SharedStore.
type Options struct {
	SharedDir string
	CacheDir  string
	Timeout   time.Duration
	Recorder  metrics.Recorder
}

// SharedStore persists documents as JSON files in a shared directory and
// mirrors every successful read or write into a local cache directory.
//
// There is no lock across processes: concurrent writers on different
// machines overwrite each other and the last rename wins.
type SharedStore struct {
	sharedDir string
	cacheDir  string
	timeout   time.Duration
	recorder  metrics.Recorder
	now       func() time.Time
}

var _ Store = (*SharedStore)(nil)

// NewSharedStore creates the local cache directory and returns the store.
// The shared directory is not created: it may be temporarily unreachable.
func NewSharedStore(opts Options) (*SharedStore, error) {
	if opts.SharedDir == "" {
		return nil, fmt.Errorf("shared directory is required")
	}
	if opts.CacheDir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(opts.CacheDir, 0750); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", opts.CacheDir, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &SharedStore{
		sharedDir: opts.SharedDir,
		cacheDir:  opts.CacheDir,
		timeout:   opts.Timeout,
		recorder:  opts.Recorder,
		now:       time.Now,
	}, nil
}

// SharedDir returns the shared directory the store reads from.
func (s *SharedStore) SharedDir() string { return s.sharedDir }

func (s *SharedStore) sharedPath(key string) string {
	return filepath.Join(s.sharedDir, FileName(key))
}

func (s *SharedStore) cachePath(key string) string {
	return filepath.Join(s.cacheDir, "cache-"+FileName(key))
}

// errAbsent marks a resource missing from a reachable shared directory.
var errAbsent = errors.New("resource not written yet")

// Read returns the shared copy of key, refreshing the local mirror, or the
// mirror marked stale when the shared copy cannot be read in time. A resource
// that exists in neither place on a reachable share reads as fresh and empty;
// one only present in the mirror is served from it, stale, until written.
func (s *SharedStore) Read(ctx context.Context, key string) ([]byte, Meta) {
	data, err := s.bounded(ctx, func() ([]byte, error) {
		b, err := os.ReadFile(s.sharedPath(key))
		if errors.Is(err, fs.ErrNotExist) {
			if _, serr := os.Stat(s.sharedDir); serr == nil {
				return nil, errAbsent
			}
		}
		if err != nil {
			return nil, err
		}
		if !json.Valid(b) {
			return nil, fmt.Errorf("invalid JSON in %s", FileName(key))
		}
		return b, nil
	})
	if err == nil {
		if werr := writeFileAtomic(s.cachePath(key), data); werr != nil {
			slog.Warn("Failed to refresh local mirror", logfields.Resource(key), logfields.Error(werr))
		}
		s.recorder.IncStoreRead(key, string(SourceNetwork))
		return data, Meta{Source: SourceNetwork, ReadAt: s.now()}
	}

	cached, cerr := os.ReadFile(s.cachePath(key))
	if errors.Is(err, errAbsent) && cerr != nil {
		s.recorder.IncStoreRead(key, string(SourceNetwork))
		return nil, Meta{Source: SourceNetwork, ReadAt: s.now()}
	}
	slog.Debug("Shared read failed, using local mirror", logfields.Resource(key), logfields.Error(err))
	s.recorder.IncStoreRead(key, string(SourceCache))
	if cerr != nil {
		cached = nil
	}
	return cached, Meta{Source: SourceCache, Stale: true, ReadAt: s.now()}
}

// Write updates the local mirror, then the shared copy. The returned error
// wraps ErrNetworkUnavailable when only the mirror was updated.
func (s *SharedStore) Write(ctx context.Context, key string, data []byte) error {
	if err := writeFileAtomic(s.cachePath(key), data); err != nil {
		slog.Warn("Failed to write local mirror", logfields.Resource(key), logfields.Error(err))
	}
	_, err := s.bounded(ctx, func() ([]byte, error) {
		return nil, writeFileAtomic(s.sharedPath(key), data)
	})
	if err != nil {
		s.recorder.IncStoreWriteFailure(key)
		return fmt.Errorf("%w: write %s: %v", ErrNetworkUnavailable, key, err)
	}
	return nil
}

// Ping checks that the shared directory is reachable within the timeout.
func (s *SharedStore) Ping(ctx context.Context) error {
	_, err := s.bounded(ctx, func() ([]byte, error) {
		info, err := os.Stat(s.sharedDir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", s.sharedDir)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	return nil
}

// Reset drops the local mirror of key.
func (s *SharedStore) Reset(key string) error {
	if err := os.Remove(s.cachePath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove mirror %s: %w", key, err)
	}
	return nil
}

// EnsureDefaults recreates shared resources that are missing or unparsable
// with their default shape. It returns the keys that were repaired.
func (s *SharedStore) EnsureDefaults(ctx context.Context, defaults map[string]any) ([]string, error) {
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	var repaired []string
	for key, def := range defaults {
		_, err := s.bounded(ctx, func() ([]byte, error) {
			b, err := os.ReadFile(s.sharedPath(key))
			if err != nil {
				return nil, err
			}
			if !json.Valid(b) {
				return nil, fs.ErrInvalid
			}
			return b, nil
		})
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrInvalid) {
			return repaired, fmt.Errorf("%w: check %s: %v", ErrNetworkUnavailable, key, err)
		}
		slog.Warn("Recreating shared resource with default shape", logfields.Resource(key), logfields.Error(err))
		if err := Save(ctx, s, key, def); err != nil {
			return repaired, err
		}
		repaired = append(repaired, key)
	}
	return repaired, nil
}

// bounded runs fn in its own goroutine and gives up after the store timeout.
// An abandoned call keeps running in the background until the OS returns.
func (s *SharedStore) bounded(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := fn()
		ch <- result{data: data, err: err}
	}()

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeFileAtomic writes through a temporary file so readers on other
// machines never observe a half-written document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
