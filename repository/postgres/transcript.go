package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/transcript"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
    video_id   TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    segments   JSONB NOT NULL DEFAULT '[]'::jsonb,
    raw_text   TEXT NOT NULL DEFAULT '',
    language   TEXT NOT NULL DEFAULT '',
    source     TEXT NOT NULL DEFAULT '',
    error_code TEXT NOT NULL DEFAULT '',
    error      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_updated_at ON transcripts (updated_at)`

const upsertQuery = `
INSERT INTO transcripts (
    video_id, status, segments, raw_text, language,
    source, error_code, error, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (video_id) DO UPDATE SET
    status = EXCLUDED.status,
    segments = EXCLUDED.segments,
    raw_text = EXCLUDED.raw_text,
    language = EXCLUDED.language,
    source = EXCLUDED.source,
    error_code = EXCLUDED.error_code,
    error = EXCLUDED.error,
    updated_at = EXCLUDED.updated_at`

const findQuery = `
SELECT video_id, status, segments, raw_text, language,
       source, error_code, error, created_at, updated_at
FROM transcripts WHERE video_id = $1`

type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Repository stores transcripts in PostgreSQL through a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// Connect creates the pool, verifies it and applies the schema.
func Connect(ctx context.Context, cfg Config) (*Repository, error) {
	const op = "postgres.Connect"

	if cfg.URL == "" {
		return nil, errors.Internal(op, nil, "DATABASE_URL is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to parse DATABASE_URL")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to create pgx pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Internal(op, err, "failed to ping postgres")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.Internal(op, err, "failed to apply schema")
	}

	return &Repository{pool: pool}, nil
}

func (r *Repository) Save(ctx context.Context, t *models.Transcript) error {
	const op = "PostgresRepository.Save"

	segments := t.Segments
	if segments == nil {
		segments = []transcript.Segment{}
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return errors.Internal(op, err, "Failed to encode segments")
	}

	_, err = r.pool.Exec(ctx, upsertQuery,
		t.VideoID,
		string(t.Status),
		data,
		t.RawText,
		t.Language,
		t.Source,
		t.ErrorCode,
		t.Error,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return errors.Internal(op, err, "Failed to save transcript")
	}
	return nil
}

func (r *Repository) Find(ctx context.Context, videoID string) (*models.Transcript, error) {
	const op = "PostgresRepository.Find"

	t := &models.Transcript{}
	var status string
	var segments []byte

	err := r.pool.QueryRow(ctx, findQuery, videoID).Scan(
		&t.VideoID,
		&status,
		&segments,
		&t.RawText,
		&t.Language,
		&t.Source,
		&t.ErrorCode,
		&t.Error,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound(op, nil, "Transcript not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transcript")
	}

	if err := json.Unmarshal(segments, &t.Segments); err != nil {
		return nil, errors.Internal(op, err, "Failed to decode segments")
	}
	t.Status = models.Status(status)
	return t, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
