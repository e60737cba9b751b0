package transcript

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultConsentCookie = "CONSENT=YES+cb.20210328-17-p0.en+FX+000; SOCS=CAI"
	youtubeOrigin        = "https://www.youtube.com"
)

type DirectConfig struct {
	WatchURL       string
	UserAgent      string
	ConsentCookie  string
	AcceptLanguage string
	MaxPageBytes   int64
}

// DirectStrategy scrapes the public watch page and fetches the best
// caption track itself.
type DirectStrategy struct {
	cfg  DirectConfig
	opts options
}

func NewDirectStrategy(cfg DirectConfig, opts ...Option) *DirectStrategy {
	if cfg.WatchURL == "" {
		cfg.WatchURL = DefaultWatchURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.ConsentCookie == "" {
		cfg.ConsentCookie = DefaultConsentCookie
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = "en-US,en;q=0.9"
	}
	return &DirectStrategy{cfg: cfg, opts: buildOptions("direct", opts)}
}

func (d *DirectStrategy) header() http.Header {
	h := http.Header{}
	h.Set("User-Agent", d.cfg.UserAgent)
	h.Set("Cookie", d.cfg.ConsentCookie)
	h.Set("Accept-Language", d.cfg.AcceptLanguage)
	return h
}

// Resolve fetches the watch page, classifies playability, extracts and
// selects a caption track, then downloads and parses it.
func (d *DirectStrategy) Resolve(ctx context.Context, videoID string) Result {
	const op = "DirectStrategy.Resolve"
	log := d.opts.logger.WithField("video_id", videoID)

	watchURL := d.cfg.WatchURL + "?v=" + url.QueryEscape(videoID)
	page, err := get(ctx, d.opts.client, d.opts.limiter, watchURL, d.header(), d.cfg.MaxPageBytes)
	if err != nil {
		return Failure(newError(KindNetwork, op, err, "failed to reach YouTube"))
	}
	switch {
	case page.status == http.StatusNotFound:
		return Failure(newError(KindVideoNotFound, op, nil, "video not found"))
	case !page.ok():
		return Failure(newError(KindFetch, op, nil, "watch page returned HTTP %d", page.status))
	}

	if perr := ClassifyPlayability(page.body); perr != nil {
		log.WithFields(logrus.Fields{
			"error_code": perr.Kind.String(),
			"reason":     perr.Message,
		}).Info("Video is not playable")
		return Failure(perr)
	}

	tracks, extractor := ExtractCaptionTracks(page.body, d.opts.extractors)
	if len(tracks) == 0 {
		log.Info("No caption tracks found")
		return NoCaptions(SourceDirect)
	}
	track, _ := SelectTrack(tracks)
	log.WithFields(logrus.Fields{
		"extractor": extractor,
		"tracks":    len(tracks),
		"language":  track.LanguageCode,
		"kind":      track.Kind,
	}).Debug("Selected caption track")

	segments, terr := d.fetchTrack(ctx, track)
	if terr != nil {
		return Failure(terr)
	}
	return Success(segments, SourceDirect, track.LanguageCode)
}

func (d *DirectStrategy) fetchTrack(ctx context.Context, track CaptionTrack) ([]Segment, *Error) {
	const op = "DirectStrategy.fetchTrack"

	trackURL := EnsureXMLFormat(absoluteURL(track.BaseURL))
	resp, err := get(ctx, d.opts.client, d.opts.limiter, trackURL, d.header(), 0)
	if err != nil {
		return nil, newError(KindNetwork, op, err, "failed to reach caption server")
	}
	if !resp.ok() {
		return nil, newError(KindTranscriptFetch, op, nil, "caption track returned HTTP %d", resp.status)
	}
	if strings.TrimSpace(resp.body) == "" {
		return nil, newError(KindTranscriptFetch, op, nil, "caption track was empty")
	}

	segments := ParseTimedText(resp.body)
	if len(segments) == 0 {
		return nil, newError(KindParse, op, nil, "caption track contained no segments")
	}
	return segments, nil
}

func absoluteURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "/") {
		return youtubeOrigin + raw
	}
	return raw
}
