package transcript

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	StatusOK            = "OK"
	StatusLoginRequired = "LOGIN_REQUIRED"
	StatusUnplayable    = "UNPLAYABLE"
	StatusError         = "ERROR"
)

// Playability is the availability block embedded in a watch page.
type Playability struct {
	Status string
	Reason string
}

var (
	playabilityPrefix = regexp.MustCompile(`"playabilityStatus"\s*:\s*`)
	playabilityStatus = regexp.MustCompile(`"playabilityStatus"\s*:\s*\{\s*"status"\s*:\s*"([A-Z_]+)"`)
	ageReason         = regexp.MustCompile(`(?i)\bage\b`)
)

const (
	recaptchaMarker = `class="g-recaptcha"`
	consentMarker   = `action="https://consent.youtube.com`
)

// ParsePlayability finds the first playability block in page. ok is false
// when the page carries none. Blocks inside backslash-escaped JS strings
// are found after one level of unescaping.
func ParsePlayability(page string) (p Playability, ok bool) {
	page = unescapeHex(page)
	if p, ok := parsePlayability(page); ok {
		return p, true
	}
	if strings.Contains(page, `\"`) {
		return parsePlayability(literalUnescaper.Replace(page))
	}
	return Playability{}, false
}

func parsePlayability(page string) (Playability, bool) {
	loc := playabilityPrefix.FindStringIndex(page)
	if loc == nil {
		return Playability{}, false
	}
	if obj, _, err := balancedObject(page[loc[1]:]); err == nil {
		var raw struct {
			Status string          `json:"status"`
			Reason json.RawMessage `json:"reason"`
		}
		if json.Unmarshal([]byte(obj), &raw) == nil && raw.Status != "" {
			return Playability{Status: raw.Status, Reason: reasonText(raw.Reason)}, true
		}
	}
	if m := playabilityStatus.FindStringSubmatch(page); m != nil {
		return Playability{Status: m[1]}, true
	}
	return Playability{}, false
}

// reasonText accepts a plain string or a {simpleText}/{runs} text object.
func reasonText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	if obj.SimpleText != "" {
		return obj.SimpleText
	}
	var b strings.Builder
	for _, r := range obj.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// ClassifyPlayability maps a watch page to a categorized error, or nil when
// the video is playable and caption extraction should proceed.
func ClassifyPlayability(page string) *Error {
	const op = "transcript.ClassifyPlayability"

	p, ok := ParsePlayability(page)
	if !ok {
		switch {
		case strings.Contains(page, recaptchaMarker):
			return newError(KindFetch, op, nil, "YouTube is receiving too many requests from this client")
		case strings.Contains(page, consentMarker):
			return newError(KindFetch, op, nil, "YouTube returned a cookie consent page")
		}
		return nil
	}

	switch p.Status {
	case StatusOK:
		return nil
	case StatusLoginRequired:
		if ageReason.MatchString(p.Reason) {
			return newError(KindVideoPrivate, op, nil, "video is age-restricted: %s", p.Reason)
		}
		return newError(KindVideoPrivate, op, nil, "video is private")
	case StatusError:
		if p.Reason != "" {
			return newError(KindVideoNotFound, op, nil, "video not found: %s", p.Reason)
		}
		return newError(KindVideoNotFound, op, nil, "video not found")
	default:
		reason := p.Reason
		if reason == "" {
			reason = strings.ToLower(strings.ReplaceAll(p.Status, "_", " "))
		}
		return newError(KindVideoUnavailable, op, nil, "video unavailable: %s", reason)
	}
}
