package repository

import (
	"context"

	"github.com/nijaru/yt-transcript/models"
)

// TranscriptRepository stores one record per video ID.
type TranscriptRepository interface {
	Save(ctx context.Context, t *models.Transcript) error
	Find(ctx context.Context, videoID string) (*models.Transcript, error)
	Close() error
}
