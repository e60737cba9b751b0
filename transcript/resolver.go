package transcript

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Hosted is the preferred source. ok=false hands control to the direct path.
type Hosted interface {
	Fetch(ctx context.Context, videoID string) (segments []Segment, lang string, ok bool)
}

// Direct is the fallback source and always produces a categorized result.
type Direct interface {
	Resolve(ctx context.Context, videoID string) Result
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidVideoID reports whether id has the shape of a YouTube video ID.
func ValidVideoID(id string) bool { return videoIDPattern.MatchString(id) }

// Resolver turns a video ID into a Result. It is stateless and safe for
// concurrent use.
type Resolver struct {
	hosted Hosted
	direct Direct
	log    *logrus.Entry
}

// NewResolver wires the two strategies. hosted may be nil.
func NewResolver(hosted Hosted, direct Direct, opts ...Option) *Resolver {
	o := buildOptions("resolver", opts)
	return &Resolver{hosted: hosted, direct: direct, log: o.logger}
}

// Resolve never panics and never returns a Go error; every failure is a
// categorized Result.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (res Result) {
	const op = "Resolver.Resolve"
	start := time.Now()
	videoID = strings.TrimSpace(videoID)
	log := r.log.WithField("video_id", videoID)

	defer func() {
		if rec := recover(); rec != nil {
			log.WithFields(logrus.Fields{
				"panic": rec,
				"stack": string(debug.Stack()),
			}).Error("Transcript resolution panicked")
			res = Failure(newError(KindUnknown, op, fmt.Errorf("%v", rec), "unexpected error while resolving transcript"))
		}
		r.logOutcome(log, res, time.Since(start))
	}()

	if videoID == "" {
		return Failure(newError(KindMissingVideoID, op, nil, "video ID is required"))
	}
	if !ValidVideoID(videoID) {
		return Failure(newError(KindInvalidRequest, op, nil, "invalid video ID %q", videoID))
	}

	if r.hosted != nil {
		if segments, lang, ok := r.hosted.Fetch(ctx, videoID); ok && len(segments) > 0 {
			return Success(segments, SourceHosted, lang)
		}
		log.Debug("Hosted strategy yielded nothing, falling back to watch page")
	}

	if r.direct == nil {
		return Failure(newError(KindUnknown, op, nil, "no transcript strategy configured"))
	}
	return r.direct.Resolve(ctx, videoID)
}

func (r *Resolver) logOutcome(log *logrus.Entry, res Result, took time.Duration) {
	log = log.WithField("duration", took)
	switch {
	case res.Err != nil:
		entry := log.WithFields(logrus.Fields{
			"error_code": res.Err.Kind.String(),
			"retryable":  res.Err.Retryable(),
		}).WithError(res.Err)
		if res.Err.Retryable() {
			entry.Warn("Transcript resolution failed")
		} else {
			entry.Info("Transcript unavailable")
		}
	case res.NoCaptions:
		log.Info("Video has no captions")
	default:
		log.WithFields(logrus.Fields{
			"source":   res.Source,
			"segments": len(res.Segments),
		}).Info("Transcript resolved")
	}
}
