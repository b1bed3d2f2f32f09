package session

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fredericrous/texto-diagrama/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is a Store backed by a session_diagrams table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore applies pending migrations and connects a pool to dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func runMigrations(dsn string) error {
	u, err := migrateURL(dsn)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, u)
	if err != nil {
		return fmt.Errorf("initialising migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	slog.Info("session schema ready", "version", version, "dirty", dirty)
	return nil
}

// migrateURL rewrites a postgres:// URL to the pgx/v5 driver scheme.
func migrateURL(dsn string) (string, error) {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix), nil
		}
	}
	if strings.HasPrefix(dsn, "pgx5://") {
		return dsn, nil
	}
	return "", fmt.Errorf("session dsn must be a postgres:// URL")
}

func (s *PostgresStore) Put(ctx context.Context, sessionID string, d model.Diagram) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_diagrams
			(session_id, diagram_id, code, kind, title, source, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (session_id) DO UPDATE SET
			diagram_id = EXCLUDED.diagram_id,
			code       = EXCLUDED.code,
			kind       = EXCLUDED.kind,
			title      = EXCLUDED.title,
			source     = EXCLUDED.source,
			confidence = EXCLUDED.confidence,
			created_at = EXCLUDED.created_at,
			updated_at = now()`,
		sessionID, d.ID, d.Code, string(d.Kind), d.Title, string(d.Source), d.Confidence, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving diagram: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*model.Diagram, error) {
	var (
		d            model.Diagram
		kind, source string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT diagram_id, code, kind, title, source, confidence, created_at
		FROM session_diagrams WHERE session_id = $1`, sessionID,
	).Scan(&d.ID, &d.Code, &kind, &d.Title, &source, &d.Confidence, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading diagram: %w", err)
	}
	d.Kind = model.DiagramKind(kind)
	d.Source = model.Source(source)
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM session_diagrams WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("deleting diagram: %w", err)
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM session_diagrams WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
