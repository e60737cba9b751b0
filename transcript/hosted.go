package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	DefaultHostedEndpoint  = "https://api.supadata.ai/v1/youtube/transcript"
	DefaultHostedKeyHeader = "x-api-key"
	DefaultWatchURL        = "https://www.youtube.com/watch"
)

type HostedConfig struct {
	Endpoint  string
	APIKey    string
	KeyHeader string
	// WatchURL is the page URL passed to the API with ?v=<id> appended.
	WatchURL string

	// BreakerFailures consecutive failures open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// HostedStrategy delegates to a third-party transcript API. It never
// returns an error: anything short of usable segments means "nothing".
type HostedStrategy struct {
	cfg     HostedConfig
	opts    options
	breaker *gobreaker.CircuitBreaker
}

func NewHostedStrategy(cfg HostedConfig, opts ...Option) *HostedStrategy {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultHostedEndpoint
	}
	if cfg.KeyHeader == "" {
		cfg.KeyHeader = DefaultHostedKeyHeader
	}
	if cfg.WatchURL == "" {
		cfg.WatchURL = DefaultWatchURL
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}

	o := buildOptions("hosted", opts)
	h := &HostedStrategy{cfg: cfg, opts: o}
	h.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "hosted-transcript",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Hosted transcript breaker changed state")
		},
	})
	return h
}

// Configured reports whether an API key is present.
func (h *HostedStrategy) Configured() bool { return h != nil && h.cfg.APIKey != "" }

type hostedResponse struct {
	Content []struct {
		Text     string  `json:"text"`
		Offset   float64 `json:"offset"`
		Duration float64 `json:"duration"`
	} `json:"content"`
	Lang string `json:"lang"`
}

// errHostedStatus marks a server-side failure that should count against
// the breaker.
type errHostedStatus int

func (e errHostedStatus) Error() string { return fmt.Sprintf("hosted API returned HTTP %d", int(e)) }

// Fetch returns segments and their language, or ok=false when the hosted
// API is unconfigured, unavailable or has nothing for this video.
func (h *HostedStrategy) Fetch(ctx context.Context, videoID string) (segments []Segment, lang string, ok bool) {
	if !h.Configured() {
		return nil, "", false
	}
	log := h.opts.logger.WithField("video_id", videoID)

	out, err := h.breaker.Execute(func() (interface{}, error) {
		return h.call(ctx, videoID)
	})
	if err != nil {
		log.WithError(err).Debug("Hosted transcript API yielded nothing")
		return nil, "", false
	}
	resp, _ := out.(*hostedResponse)
	if resp == nil {
		log.Debug("Hosted transcript API returned no content")
		return nil, "", false
	}

	for _, c := range resp.Content {
		text := CleanText(c.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: clampSeconds(c.Offset / 1000), Text: text})
	}
	if len(segments) == 0 {
		log.Debug("Hosted transcript API returned no usable segments")
		return nil, "", false
	}
	sortSegments(segments)
	return segments, resp.Lang, true
}

func (h *HostedStrategy) call(ctx context.Context, videoID string) (*hostedResponse, error) {
	watch := h.cfg.WatchURL + "?v=" + url.QueryEscape(videoID)
	endpoint := h.cfg.Endpoint + "?url=" + url.QueryEscape(watch)

	header := http.Header{}
	header.Set(h.cfg.KeyHeader, h.cfg.APIKey)
	header.Set("Accept", "application/json")

	resp, err := get(ctx, h.opts.client, h.opts.limiter, endpoint, header, 0)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.status >= 500 || resp.status == http.StatusTooManyRequests:
		return nil, errHostedStatus(resp.status)
	case !resp.ok():
		// Not an outage; the API simply has nothing for this video.
		return nil, nil
	}

	var body hostedResponse
	if err := json.Unmarshal([]byte(resp.body), &body); err != nil {
		return nil, errors.Wrap(err, "decode hosted response")
	}
	return &body, nil
}
