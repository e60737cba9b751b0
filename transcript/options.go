package transcript

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type options struct {
	client     *http.Client
	logger     *logrus.Entry
	limiter    *rate.Limiter
	extractors []Extractor
}

// Option customizes a strategy or resolver.
type Option func(*options)

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.logger = l }
}

// WithLimiter paces outbound requests. Each request waits for a token.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

func WithExtractors(chain []Extractor) Option {
	return func(o *options) { o.extractors = chain }
}

func buildOptions(component string, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 15 * time.Second}
	}
	if o.logger == nil {
		o.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	o.logger = o.logger.WithField("component", component)
	if o.extractors == nil {
		o.extractors = DefaultExtractors
	}
	return o
}
