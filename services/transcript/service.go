package transcript

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/nijaru/yt-transcript/errors"
	"github.com/nijaru/yt-transcript/models"
	"github.com/nijaru/yt-transcript/repository"
	"github.com/nijaru/yt-transcript/retry"
	yt "github.com/nijaru/yt-transcript/transcript"
)

type service struct {
	repo     repository.TranscriptRepository
	archive  Archive
	resolver Resolver
	config   Config
	logger   *logrus.Entry
	inflight singleflight.Group
}

// NewService wires the cache layers around resolver. archive may be nil.
func NewService(
	repo repository.TranscriptRepository,
	archive Archive,
	resolver Resolver,
	config Config,
	logger *logrus.Entry,
) Service {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &service{
		repo:     repo,
		archive:  archive,
		resolver: resolver,
		config:   config,
		logger:   logger.WithField("component", "transcript_service"),
	}
}

func (s *service) Get(ctx context.Context, videoID string) yt.Result {
	log := s.logger.WithField("video_id", videoID)

	if rec := s.cached(ctx, videoID, log); rec != nil {
		return rec.Result()
	}
	return s.resolveShared(ctx, videoID)
}

func (s *service) Refresh(ctx context.Context, videoID string) yt.Result {
	return s.resolveShared(ctx, videoID)
}

func (s *service) Stored(ctx context.Context, videoID string) (*models.Transcript, error) {
	const op = "TranscriptService.Stored"

	rec, err := s.repo.Find(ctx, videoID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, err
		}
		return nil, errors.Internal(op, err, "Failed to load transcript")
	}
	return rec, nil
}

// cached checks the repository and then the archive for a reusable record.
func (s *service) cached(ctx context.Context, videoID string, log *logrus.Entry) *models.Transcript {
	rec, err := s.repo.Find(ctx, videoID)
	switch {
	case err == nil && rec.IsFresh(s.config.CacheTTL):
		log.WithField("status", rec.Status).Debug("Serving stored transcript")
		return rec
	case err != nil && !errors.IsNotFound(err):
		log.WithError(err).Warn("Transcript repository lookup failed")
	}

	if s.archive == nil {
		return nil
	}
	rec, err = s.archive.Find(ctx, videoID)
	switch {
	case err == nil && rec.IsFresh(s.config.CacheTTL):
		log.Debug("Serving archived transcript")
		if err := s.repo.Save(ctx, rec); err != nil {
			log.WithError(err).Warn("Failed to restore archived transcript")
		}
		return rec
	case err != nil && !errors.IsNotFound(err):
		log.WithError(err).Warn("Transcript archive lookup failed")
	}
	return nil
}

// resolveShared collapses concurrent resolutions of the same video. The
// shared work is detached from any one caller's cancellation and bounded by
// the retry policy; each caller stops waiting when its own context ends.
func (s *service) resolveShared(ctx context.Context, videoID string) yt.Result {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	ch := s.inflight.DoChan(videoID, func() (interface{}, error) {
		return s.resolve(context.WithoutCancel(ctx), videoID), nil
	})
	select {
	case r := <-ch:
		return r.Val.(yt.Result)
	case <-ctx.Done():
		s.logger.WithField("video_id", videoID).Debug("Caller left before resolution finished")
		return cancelled(ctx.Err())
	}
}

func cancelled(err error) yt.Result {
	return yt.Failure(&yt.Error{Kind: yt.KindNetwork, Op: "TranscriptService.resolve", Message: "request cancelled", Err: err})
}

func (s *service) resolve(ctx context.Context, videoID string) yt.Result {
	log := s.logger.WithField("video_id", videoID)

	var last yt.Result
	attempts := 0
	_, err := retry.Do(ctx, s.config.Retry, func(ctx context.Context) (yt.Result, error) {
		attempts++
		last = s.resolver.Resolve(ctx, videoID)
		if last.Err != nil {
			return last, last.Err
		}
		return last, nil
	})
	if err != nil && last.Err == nil {
		// The context ended before any attempt ran.
		last = cancelled(err)
	}
	log.WithField("attempts", attempts).Debug("Resolution finished")

	// A failure caused by cancellation says nothing about the video.
	if last.Err != nil && ctx.Err() != nil {
		return last
	}
	s.persist(ctx, videoID, last, log)
	return last
}

func (s *service) persist(ctx context.Context, videoID string, res yt.Result, log *logrus.Entry) {
	// Invalid IDs are never stored.
	if res.Err != nil && (res.Err.Kind == yt.KindMissingVideoID || res.Err.Kind == yt.KindInvalidRequest) {
		return
	}

	rec := models.FromResult(videoID, res)
	if prev, err := s.repo.Find(ctx, videoID); err == nil {
		rec.CreatedAt = prev.CreatedAt
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		log.WithError(err).Warn("Failed to persist transcript")
	}

	if s.archive != nil && rec.IsCompleted() {
		if err := s.archive.Save(ctx, rec); err != nil {
			log.WithError(err).Warn("Failed to archive transcript")
		}
	}
}
