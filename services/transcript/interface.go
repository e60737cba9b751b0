package transcript

import (
	"context"
	"time"

	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/retry"
	yt "github.com/nijaru/yt-transcript/transcript"
)

type Service interface {
	// Get serves a fresh stored outcome or resolves the video.
	Get(ctx context.Context, videoID string) yt.Result

	// Refresh resolves the video even when a stored outcome exists.
	Refresh(ctx context.Context, videoID string) yt.Result

	// Stored returns the persisted record without touching YouTube.
	Stored(ctx context.Context, videoID string) (*models.Transcript, error)
}

// Resolver produces categorized results for a single attempt.
type Resolver interface {
	Resolve(ctx context.Context, videoID string) yt.Result
}

// Archive is an optional second-level store for successful transcripts.
type Archive interface {
	Save(ctx context.Context, t *models.Transcript) error
	Find(ctx context.Context, videoID string) (*models.Transcript, error)
}

type Config struct {
	Retry    retry.Policy  `json:"retry"`
	CacheTTL time.Duration `json:"cache_ttl"`
}
