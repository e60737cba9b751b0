package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/transcript"
)

type Repository struct {
	db     *sql.DB
	stmts  PreparedStatements
	config DBConfig
}

func NewRepository(ctx context.Context, db *sql.DB, config DBConfig) (*Repository, error) {
	ConfigureDB(db, config)
	r := &Repository{db: db, config: config}
	if err := r.stmts.Prepare(ctx, db); err != nil {
		r.stmts.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Save(ctx context.Context, t *models.Transcript) error {
	const op = "SQLiteRepository.Save"

	segments, err := json.Marshal(segmentsOrEmpty(t.Segments))
	if err != nil {
		return errors.Internal(op, err, "Failed to encode segments")
	}

	var lastErr error
	for i := 0; i < r.config.MaxRetries; i++ {
		lastErr = r.save(ctx, t, segments)
		if lastErr == nil {
			return nil
		}
		if !isLockError(lastErr) {
			return errors.Internal(op, lastErr, "Failed to save transcript")
		}
		select {
		case <-ctx.Done():
			return errors.Internal(op, ctx.Err(), "Context cancelled while saving transcript")
		case <-time.After(r.config.RetryDelay * time.Duration(i+1)):
		}
	}
	return errors.Internal(op, lastErr, "Failed after retries")
}

func (r *Repository) save(ctx context.Context, t *models.Transcript, segments []byte) error {
	_, err := r.stmts.upsert.ExecContext(ctx,
		t.VideoID,
		string(t.Status),
		string(segments),
		t.RawText,
		t.Language,
		t.Source,
		t.ErrorCode,
		t.Error,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

func (r *Repository) Find(ctx context.Context, videoID string) (*models.Transcript, error) {
	const op = "SQLiteRepository.Find"

	t := &models.Transcript{}
	var status, segments string

	err := r.stmts.get.QueryRowContext(ctx, videoID).Scan(
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

	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "Transcript not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query transcript")
	}

	if err := json.Unmarshal([]byte(segments), &t.Segments); err != nil {
		return nil, errors.Internal(op, err, "Failed to decode segments")
	}
	t.Status = models.Status(status)
	return t, nil
}

func (r *Repository) Close() error {
	return r.stmts.Close()
}

func segmentsOrEmpty(s []transcript.Segment) []transcript.Segment {
	if s == nil {
		return []transcript.Segment{}
	}
	return s
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "database is locked") ||
		strings.Contains(err.Error(), "busy")
}
