// Package client calls the transcript service over HTTP with the retry and
// token refresh conventions callers are expected to follow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-transcript/retry"
	"github.com/nijaru/yt-transcript/transcript"
)

const maxResponseBytes = 16 << 20

// TokenSource supplies bearer tokens. Refresh is called at most once per
// request, after an unauthorized or timed out call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	policy  retry.Policy
	logger  *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithTokenSource(ts TokenSource) Option {
	return func(cl *Client) { cl.tokens = ts }
}

func WithPolicy(p retry.Policy) Option {
	return func(cl *Client) { cl.policy = p }
}

func WithLogger(l *logrus.Entry) Option {
	return func(cl *Client) { cl.logger = l }
}

// New returns a client for the service at baseURL. Calls time out after 8s
// and are retried with 1s, 2s and 4s waits.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		policy: retry.Policy{
			Attempts:       4,
			AttemptTimeout: 8 * time.Second,
			InitialWait:    time.Second,
			MaxWait:        4 * time.Second,
			Multiplier:     2,
		},
		logger: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "transcript_client")
	return c
}

// Transcript fetches the transcript for videoID, using the service cache.
func (c *Client) Transcript(ctx context.Context, videoID string) transcript.Result {
	return c.call(ctx, "/api/transcript", videoID)
}

// Refresh asks the service to resolve videoID again.
func (c *Client) Refresh(ctx context.Context, videoID string) transcript.Result {
	return c.call(ctx, "/api/transcript/refresh", videoID)
}

// errUnauthorized stops retries so the token can be refreshed first.
type errUnauthorized struct{}

func (errUnauthorized) Error() string   { return "unauthorized" }
func (errUnauthorized) Retryable() bool { return false }

func (c *Client) call(ctx context.Context, path, videoID string) transcript.Result {
	log := c.logger.WithFields(logrus.Fields{"path": path, "video_id": videoID})

	res, err := retry.Do(ctx, c.policy, func(ctx context.Context) (transcript.Result, error) {
		return c.attempt(ctx, path, videoID, c.token)
	})
	if err == nil || !c.shouldRefresh(err) {
		return finish(res, err)
	}

	log.WithError(err).Info("Refreshing token and retrying once")
	token, rerr := c.tokens.Refresh(ctx)
	if rerr != nil {
		return transcript.Failure(&transcript.Error{
			Kind:    transcript.KindInvoke,
			Op:      "Client.call",
			Message: "token refresh failed",
			Err:     rerr,
		})
	}
	static := func(context.Context) (string, error) { return token, nil }
	res, err = retry.Do(ctx, retry.Policy{Attempts: 1, AttemptTimeout: c.policy.AttemptTimeout},
		func(ctx context.Context) (transcript.Result, error) {
			return c.attempt(ctx, path, videoID, static)
		})
	return finish(res, err)
}

func (c *Client) shouldRefresh(err error) bool {
	if c.tokens == nil {
		return false
	}
	var unauthorized errUnauthorized
	if stderrors.As(err, &unauthorized) {
		return true
	}
	var te *transcript.Error
	return stderrors.As(err, &te) && isTimeout(te.Err)
}

// finish turns the outcome of a retry loop into a categorized result.
func finish(res transcript.Result, err error) transcript.Result {
	if err == nil {
		return res
	}
	var te *transcript.Error
	if stderrors.As(err, &te) {
		return transcript.Failure(te)
	}
	if stderrors.As(err, new(errUnauthorized)) {
		return transcript.Failure(&transcript.Error{Kind: transcript.KindInvoke, Op: "Client.call", Message: "unauthorized"})
	}
	return transcript.Failure(&transcript.Error{Kind: transcript.KindNetwork, Op: "Client.call", Message: "request failed", Err: err})
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

// attempt performs a single request. Categorized failures are returned as
// the error so retry.Do can consult their retryability.
func (c *Client) attempt(ctx context.Context, path, videoID string, token func(context.Context) (string, error)) (transcript.Result, error) {
	const op = "Client.attempt"

	body, err := json.Marshal(map[string]string{"videoId": videoID})
	if err != nil {
		return transcript.Result{}, &transcript.Error{Kind: transcript.KindInvoke, Op: op, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return transcript.Result{}, &transcript.Error{Kind: transcript.KindInvoke, Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	bearer, err := token(ctx)
	if err != nil {
		return transcript.Result{}, &transcript.Error{Kind: transcript.KindInvoke, Op: op, Message: "obtain token", Err: err}
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transcript.Result{}, &transcript.Error{Kind: transcript.KindNetwork, Op: op, Message: "service unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return transcript.Result{}, errUnauthorized{}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transcript.Result{}, &transcript.Error{Kind: transcript.KindNetwork, Op: op, Message: "read response", Err: err}
	}

	var res transcript.Result
	if err := json.Unmarshal(raw, &res); err != nil || !looksLikeResult(raw) {
		if err == nil {
			err = errors.New("missing result fields")
		}
		return transcript.Result{}, &transcript.Error{
			Kind:    transcript.KindInvoke,
			Op:      op,
			Message: fmt.Sprintf("unexpected response (HTTP %d)", resp.StatusCode),
			Err:     errors.Wrap(err, "decode response"),
		}
	}
	if res.Err != nil {
		res.Err.Op = op
		return res, res.Err
	}
	return res, nil
}

// looksLikeResult rejects JSON bodies that are not transcript results, such
// as the generic error envelope.
func looksLikeResult(raw []byte) bool {
	var probe map[string]json.RawMessage
	if json.Unmarshal(raw, &probe) != nil {
		return false
	}
	_, hasSegments := probe["segments"]
	_, hasCode := probe["errorCode"]
	return hasSegments || hasCode
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
