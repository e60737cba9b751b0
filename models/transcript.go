package models

import (
	"time"

	"github.com/nijaru/yt-transcript/transcript"
)

type Status string

const (
	StatusCompleted  Status = "completed"
	StatusNoCaptions Status = "no_captions"
	StatusFailed     Status = "failed"
)

// Transcript is the persisted outcome of resolving one video.
type Transcript struct {
	VideoID   string               `json:"video_id"`
	Status    Status               `json:"status"`
	Segments  []transcript.Segment `json:"segments"`
	RawText   string               `json:"raw_text,omitempty"`
	Language  string               `json:"language,omitempty"`
	Source    string               `json:"source,omitempty"`
	ErrorCode string               `json:"error_code,omitempty"`
	Error     string               `json:"error,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (t *Transcript) IsCompleted() bool  { return t.Status == StatusCompleted }
func (t *Transcript) IsNoCaptions() bool { return t.Status == StatusNoCaptions }
func (t *Transcript) IsFailed() bool     { return t.Status == StatusFailed }

// IsFresh reports whether a stored outcome can be served instead of
// resolving again. Failures are never reused.
func (t *Transcript) IsFresh(ttl time.Duration) bool {
	if t.IsFailed() {
		return false
	}
	return ttl <= 0 || time.Since(t.UpdatedAt) <= ttl
}

// FromResult converts a resolver result into a record for videoID.
func FromResult(videoID string, res transcript.Result) *Transcript {
	now := time.Now().UTC()
	t := &Transcript{
		VideoID:   videoID,
		Source:    res.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch {
	case res.Err != nil:
		t.Status = StatusFailed
		t.ErrorCode = res.Err.Kind.String()
		t.Error = res.Err.Message
	case res.NoCaptions:
		t.Status = StatusNoCaptions
	default:
		t.Status = StatusCompleted
		t.Segments = res.Segments
		t.RawText = res.RawText
		t.Language = res.Language
	}
	return t
}

// Result converts the record back into the resolver's wire shape.
func (t *Transcript) Result() transcript.Result {
	switch t.Status {
	case StatusCompleted:
		return transcript.Success(t.Segments, t.Source, t.Language)
	case StatusNoCaptions:
		return transcript.NoCaptions(t.Source)
	default:
		kind, ok := transcript.ParseKind(t.ErrorCode)
		if !ok {
			kind = transcript.KindUnknown
		}
		return transcript.Failure(&transcript.Error{Kind: kind, Message: t.Error})
	}
}
