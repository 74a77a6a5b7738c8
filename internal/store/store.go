package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-desk-backend/internal/logfields"
)

// ErrNetworkUnavailable marks a failed or timed-out access to the shared location.
var ErrNetworkUnavailable = errors.New("shared location unavailable")

// Source tells where a read was served from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
)

// Meta describes how a Read was served.
type Meta struct {
	Source Source
	Stale  bool
	// Corrupt is set by Load when the payload could not be decoded.
	Corrupt bool
	ReadAt  time.Time
}

// Store is the key/value persistence contract shared by every component.
// Read never fails: absence of both network and cache yields nil data with
// Stale set. Write reports a network failure even though the local mirror
// has been updated; there is no retry queue.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, Meta)
	Write(ctx context.Context, key string, data []byte) error
}

// Pinger is implemented by stores that can probe their backing location.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Load decodes the document stored under key into a value of type T.
// Missing or unparsable payloads yield def.
func Load[T any](ctx context.Context, s Store, key string, def T) (T, Meta) {
	data, meta := s.Read(ctx, key)
	if len(bytes.TrimSpace(data)) == 0 {
		return def, meta
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Warn("Discarding unparsable document", logfields.Resource(key),
			logfields.Source(string(meta.Source)), logfields.Error(err))
		meta.Corrupt = true
		return def, meta
	}
	return v, meta
}

// Save encodes v and writes it under key.
func Save[T any](ctx context.Context, s Store, key string, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Write(ctx, key, data)
}
