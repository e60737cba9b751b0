package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-transcript/retry"
	"github.com/nijaru/yt-transcript/transcript"
)

var fastPolicy = retry.Policy{
	Attempts:       3,
	AttemptTimeout: time.Second,
	InitialWait:    time.Millisecond,
	MaxWait:        time.Millisecond,
	Multiplier:     2,
}

type stubTokens struct {
	token     string
	refreshed int32
}

func (s *stubTokens) Token(context.Context) (string, error) { return s.token, nil }

func (s *stubTokens) Refresh(context.Context) (string, error) {
	atomic.AddInt32(&s.refreshed, 1)
	s.token = "fresh"
	return s.token, nil
}

func writeResult(w http.ResponseWriter, status int, res transcript.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(res)
}

func TestTranscriptSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/transcript", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dQw4w9WgXcQ", body["videoId"])
		writeResult(w, http.StatusOK, transcript.Success([]transcript.Segment{{Start: 0, Text: "hi"}}, "", ""))
	}))
	defer srv.Close()

	res := New(srv.URL, WithPolicy(fastPolicy)).Transcript(context.Background(), "dQw4w9WgXcQ")
	require.False(t, res.Failed())
	assert.Equal(t, "hi", res.RawText)
}

func TestRetriesRetryableFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			writeResult(w, http.StatusBadGateway, transcript.Failure(transcript.NewError(transcript.KindFetch, "captcha")))
			return
		}
		writeResult(w, http.StatusOK, transcript.NoCaptions(""))
	}))
	defer srv.Close()

	res := New(srv.URL, WithPolicy(fastPolicy)).Transcript(context.Background(), "dQw4w9WgXcQ")
	assert.True(t, res.NoCaptions)
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestDoesNotRetryPermanentFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeResult(w, http.StatusForbidden, transcript.Failure(transcript.NewError(transcript.KindVideoPrivate, "video is private")))
	}))
	defer srv.Close()

	res := New(srv.URL, WithPolicy(fastPolicy)).Refresh(context.Background(), "dQw4w9WgXcQ")
	require.True(t, res.Failed())
	assert.Equal(t, transcript.KindVideoPrivate, res.Err.Kind)
	assert.Equal(t, "video is private", res.Err.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestRefreshesTokenOnUnauthorized(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeResult(w, http.StatusOK, transcript.NoCaptions(""))
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "stale"}
	res := New(srv.URL, WithPolicy(fastPolicy), WithTokenSource(tokens)).Transcript(context.Background(), "dQw4w9WgXcQ")
	assert.True(t, res.NoCaptions)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokens.refreshed))
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestRefreshesOnlyOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "stale"}
	res := New(srv.URL, WithPolicy(fastPolicy), WithTokenSource(tokens)).Transcript(context.Background(), "dQw4w9WgXcQ")
	require.True(t, res.Failed())
	assert.Equal(t, transcript.KindInvoke, res.Err.Kind)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokens.refreshed))
}

func TestRefreshesTokenOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		writeResult(w, http.StatusOK, transcript.NoCaptions(""))
	}))
	defer srv.Close()

	policy := fastPolicy
	policy.Attempts = 2
	policy.AttemptTimeout = 50 * time.Millisecond

	tokens := &stubTokens{token: "stale"}
	res := New(srv.URL, WithPolicy(policy), WithTokenSource(tokens)).Transcript(context.Background(), "dQw4w9WgXcQ")
	assert.True(t, res.NoCaptions)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokens.refreshed))
}

func TestUnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	policy := fastPolicy
	policy.Attempts = 1
	res := New(url, WithPolicy(policy)).Transcript(context.Background(), "dQw4w9WgXcQ")
	require.True(t, res.Failed())
	assert.Equal(t, transcript.KindNetwork, res.Err.Kind)
	assert.True(t, res.Err.Retryable())
}

func TestUnexpectedBodyIsInvokeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"error":"Batch processing is disabled"}`))
	}))
	defer srv.Close()

	policy := fastPolicy
	policy.Attempts = 1
	res := New(srv.URL, WithPolicy(policy)).Transcript(context.Background(), "dQw4w9WgXcQ")
	require.True(t, res.Failed())
	assert.Equal(t, transcript.KindInvoke, res.Err.Kind)
}
