package transcript

import (
	"encoding/json"
	"strings"
)

// CaptionTrack is one subtitle track advertised by a watch page.
type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode,omitempty"`
	Kind         string `json:"kind,omitempty"`
}

// IsAutoGenerated reports whether the track came from speech recognition.
func (t CaptionTrack) IsAutoGenerated() bool { return t.Kind == "asr" }

func (t CaptionTrack) IsEnglish() bool {
	return strings.HasPrefix(strings.ToLower(t.LanguageCode), "en")
}

// Segment is a single utterance. Start is in whole seconds.
type Segment struct {
	Start int    `json:"start"`
	Text  string `json:"text"`
}

const (
	SourceHosted = "hosted"
	SourceDirect = "direct"
)

// Result is the outcome of resolving one video. Exactly one of
// Segments, NoCaptions or Err is meaningful.
type Result struct {
	Segments   []Segment
	RawText    string
	NoCaptions bool
	Err        *Error

	// Source and Language describe where a transcript came from. They are
	// not part of the wire shape.
	Source   string
	Language string
}

// Success assembles a result from ordered segments.
func Success(segments []Segment, source, language string) Result {
	return Result{
		Segments: segments,
		RawText:  JoinText(segments),
		Source:   source,
		Language: language,
	}
}

func NoCaptions(source string) Result {
	return Result{NoCaptions: true, Source: source}
}

func Failure(err *Error) Result {
	if err == nil {
		err = NewError(KindUnknown, "unknown error")
	}
	return Result{Err: err}
}

func (r Result) Failed() bool { return r.Err != nil }

// JoinText space-joins segment texts in order.
func JoinText(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

type wireResult struct {
	Segments   []Segment  `json:"segments"`
	RawText    string     `json:"rawText"`
	NoCaptions *bool      `json:"noCaptions,omitempty"`
	Error      *string    `json:"error"`
	ErrorCode  *ErrorKind `json:"errorCode,omitempty"`
	Retryable  *bool      `json:"retryable,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{Segments: []Segment{}}
	if r.Err != nil {
		msg := r.Err.Message
		if msg == "" {
			msg = r.Err.Kind.String()
		}
		kind := r.Err.Kind
		retryable := kind.Retryable()
		w.Error = &msg
		w.ErrorCode = &kind
		w.Retryable = &retryable
		return json.Marshal(w)
	}
	noCaptions := r.NoCaptions
	w.NoCaptions = &noCaptions
	if !r.NoCaptions && len(r.Segments) > 0 {
		w.Segments = r.Segments
		w.RawText = r.RawText
	}
	return json.Marshal(w)
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var w wireResult
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Result{}
	if w.Error != nil || w.ErrorCode != nil {
		e := &Error{Kind: KindUnknown}
		if w.ErrorCode != nil {
			e.Kind = *w.ErrorCode
		}
		if w.Error != nil {
			e.Message = *w.Error
		}
		r.Err = e
		return nil
	}
	if w.NoCaptions != nil && *w.NoCaptions {
		r.NoCaptions = true
		return nil
	}
	r.Segments = w.Segments
	r.RawText = w.RawText
	return nil
}
