package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nijaru/yt-transcript/errors"
)

const (
	upsertTranscriptQuery = `
        INSERT INTO transcripts (
            video_id, status, segments, raw_text, language,
            source, error_code, error, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(video_id) DO UPDATE SET
            status = excluded.status,
            segments = excluded.segments,
            raw_text = excluded.raw_text,
            language = excluded.language,
            source = excluded.source,
            error_code = excluded.error_code,
            error = excluded.error,
            updated_at = excluded.updated_at
    `

	getTranscriptQuery = `
        SELECT video_id, status, segments, raw_text, language,
               source, error_code, error, created_at, updated_at
        FROM transcripts WHERE video_id = ?
    `
)

type PreparedStatements struct {
	upsert *sql.Stmt
	get    *sql.Stmt
}

func (stmts *PreparedStatements) Prepare(ctx context.Context, db *sql.DB) error {
	const op = "PreparedStatements.Prepare"

	var err error

	if stmts.upsert, err = db.PrepareContext(ctx, upsertTranscriptQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare upsert statement")
	}

	if stmts.get, err = db.PrepareContext(ctx, getTranscriptQuery); err != nil {
		return errors.Internal(op, err, "failed to prepare get statement")
	}

	return nil
}

func (stmts *PreparedStatements) Close() error {
	var errs []error

	for _, stmt := range [...]*sql.Stmt{stmts.upsert, stmts.get} {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to close prepared statements: %v", errs)
	}

	return nil
}
