package transcript

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// defaultMaxBody caps how much of any response is read.
const defaultMaxBody = 8 << 20

type response struct {
	status int
	body   string
}

// get performs one bounded GET. A non-nil error means the request never
// produced a response.
func get(ctx context.Context, client *http.Client, limiter *rate.Limiter, rawURL string, header http.Header, maxBody int64) (*response, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "wait for rate limiter")
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", req.URL.Host)
	}
	defer resp.Body.Close()

	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	return &response{status: resp.StatusCode, body: string(body)}, nil
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }
