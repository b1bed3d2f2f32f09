// Package session keeps each session's current diagram until it is cleared,
// replaced, or expires.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fredericrous/texto-diagrama/internal/model"
)

// ErrNotFound is returned when a session has no current diagram.
var ErrNotFound = errors.New("no diagram for session")

// Store holds one diagram per session.
type Store interface {
	// Put replaces the session's current diagram.
	Put(ctx context.Context, sessionID string, d model.Diagram) error
	Get(ctx context.Context, sessionID string) (*model.Diagram, error)
	// Delete clears the session. Deleting an empty session is not an error.
	Delete(ctx context.Context, sessionID string) error
	// Purge drops sessions last written before cutoff and reports how many.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
	Close()
}

// Config selects the backend. An empty DSN means in-memory.
type Config struct {
	DSN           string        `koanf:"dsn"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// Open returns the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.DSN == "" {
		return NewMemoryStore(), nil
	}
	pg, err := NewPostgresStore(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

// Sweep purges expired sessions every interval until ctx is done.
func Sweep(ctx context.Context, s Store, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Purge(ctx, time.Now().Add(-ttl))
			if err != nil {
				slog.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired sessions purged", "count", n)
			}
		}
	}
}
