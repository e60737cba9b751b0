package transcript

import (
	"fmt"
)

// ErrorKind is the closed set of failure categories a resolution can end in.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindMissingVideoID
	KindInvalidRequest
	KindVideoNotFound
	KindVideoPrivate
	KindVideoUnavailable
	KindFetch
	KindParse
	KindTranscriptFetch
	KindInvoke
	KindNetwork

	numKinds
)

type kindInfo struct {
	code      string
	retryable bool
}

// Retryability lives next to the wire code so the two cannot drift.
var kinds = [numKinds]kindInfo{
	KindUnknown:          {"UNKNOWN_ERROR", true},
	KindMissingVideoID:   {"MISSING_VIDEO_ID", false},
	KindInvalidRequest:   {"INVALID_REQUEST", false},
	KindVideoNotFound:    {"VIDEO_NOT_FOUND", false},
	KindVideoPrivate:     {"VIDEO_PRIVATE", false},
	KindVideoUnavailable: {"VIDEO_UNAVAILABLE", false},
	KindFetch:            {"FETCH_ERROR", true},
	KindParse:            {"PARSE_ERROR", true},
	KindTranscriptFetch:  {"TRANSCRIPT_FETCH_ERROR", true},
	KindInvoke:           {"INVOKE_ERROR", true},
	KindNetwork:          {"NETWORK_ERROR", true},
}

// Kinds returns every defined kind in declaration order.
func Kinds() []ErrorKind {
	out := make([]ErrorKind, 0, numKinds)
	for k := ErrorKind(0); k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

func (k ErrorKind) valid() bool { return k < numKinds }

// String returns the stable wire code, e.g. "VIDEO_PRIVATE".
func (k ErrorKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
	return kinds[k].code
}

// Retryable reports whether a later attempt could produce a different outcome.
func (k ErrorKind) Retryable() bool {
	if !k.valid() {
		return true
	}
	return kinds[k].retryable
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("transcript: invalid error kind %d", uint8(k))
	}
	return []byte(kinds[k].code), nil
}

func (k *ErrorKind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("transcript: unknown error code %q", string(b))
	}
	*k = parsed
	return nil
}

// ParseKind maps a wire code back to its kind.
func ParseKind(code string) (ErrorKind, bool) {
	for k := ErrorKind(0); k < numKinds; k++ {
		if kinds[k].code == code {
			return k, true
		}
	}
	return KindUnknown, false
}
