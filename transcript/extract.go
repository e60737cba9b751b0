package transcript

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Extractor recovers caption tracks from a watch page. Extractors are pure
// and independent; a failing one only means the next gets a turn.
type Extractor struct {
	Name    string
	Extract func(page string) ([]CaptionTrack, error)
}

var errNoTracks = errors.New("no caption tracks")

// DefaultExtractors is the ordered chain tried against every watch page.
var DefaultExtractors = []Extractor{
	{Name: "field", Extract: extractField},
	{Name: "player-response", Extract: extractPlayerResponse},
	{Name: "bounded", Extract: extractBounded},
	{Name: "next-key", Extract: extractNextKey},
}

// ExtractCaptionTracks runs the chain and returns the first non-empty track
// list along with the name of the extractor that produced it. An empty
// name means no extractor found anything.
func ExtractCaptionTracks(page string, chain []Extractor) ([]CaptionTrack, string) {
	for _, ex := range chain {
		tracks, err := runExtractor(ex, page)
		if err == nil && len(tracks) > 0 {
			return tracks, ex.Name
		}
	}
	return nil, ""
}

func runExtractor(ex Extractor, page string) (tracks []CaptionTrack, err error) {
	defer func() {
		if r := recover(); r != nil {
			tracks, err = nil, errors.Errorf("extractor %s panicked: %v", ex.Name, r)
		}
	}()
	return ex.Extract(page)
}

var (
	hexEscape = regexp.MustCompile(`\\x([0-9a-fA-F]{2})`)

	literalUnescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)

	fieldPattern   = regexp.MustCompile(`(?s)\\?"captionTracks\\?"\s*:\s*(\[.*?\])`)
	boundedPattern = regexp.MustCompile(`(?s)"captionTracks"\s*:\s*(\[.*?\])\s*,\s*"audioTracks"`)
	playerPrefix   = regexp.MustCompile(`ytInitialPlayerResponse\s*=\s*`)
	fieldStart     = regexp.MustCompile(`"captionTracks"\s*:\s*\[`)
	nextKey        = regexp.MustCompile(`^\s*(?:,\s*"[A-Za-z_$][\w$]*"\s*:|\})`)
)

// unescapeHex replaces \xNN escapes with code point U+00NN.
func unescapeHex(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	return hexEscape.ReplaceAllStringFunc(s, func(m string) string {
		b, err := strconv.ParseUint(m[2:], 16, 8)
		if err != nil {
			return m
		}
		return string(rune(b))
	})
}

// parseTracks decodes a JSON array of tracks, retrying once with one level
// of backslash escaping removed.
func parseTracks(raw string) ([]CaptionTrack, error) {
	tracks, err := decodeTracks(raw)
	if err == nil {
		return tracks, nil
	}
	if !strings.Contains(raw, `\`) {
		return nil, err
	}
	return decodeTracks(literalUnescaper.Replace(raw))
}

func decodeTracks(raw string) ([]CaptionTrack, error) {
	var all []CaptionTrack
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return nil, errors.Wrap(err, "decode caption tracks")
	}
	return usable(all)
}

func usable(all []CaptionTrack) ([]CaptionTrack, error) {
	tracks := all[:0]
	for _, t := range all {
		if t.BaseURL != "" {
			tracks = append(tracks, t)
		}
	}
	if len(tracks) == 0 {
		return nil, errNoTracks
	}
	return tracks, nil
}

// extractField matches the captionTracks field with a non-greedy array.
func extractField(page string) ([]CaptionTrack, error) {
	m := fieldPattern.FindStringSubmatch(unescapeHex(page))
	if m == nil {
		return nil, errNoTracks
	}
	return parseTracks(m[1])
}

type playerResponse struct {
	Captions struct {
		Renderer struct {
			CaptionTracks []CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

// extractPlayerResponse parses the whole ytInitialPlayerResponse object.
func extractPlayerResponse(page string) ([]CaptionTrack, error) {
	page = unescapeHex(page)
	loc := playerPrefix.FindStringIndex(page)
	if loc == nil {
		return nil, errNoTracks
	}
	rest := page[loc[1]:]
	obj, end, err := balancedObject(rest)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.TrimLeft(rest[end:], " \t\r\n"), ";") {
		return nil, errors.New("player response not terminated by ';'")
	}

	var pr playerResponse
	if err := json.Unmarshal([]byte(obj), &pr); err != nil {
		return nil, errors.Wrap(err, "decode player response")
	}
	return usable(pr.Captions.Renderer.CaptionTracks)
}

// balancedObject returns the JSON object at the start of s and the offset
// just past it. Braces inside string literals are ignored.
func balancedObject(s string) (string, int, error) {
	if !strings.HasPrefix(s, "{") {
		return "", 0, errors.New("expected '{'")
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], i + 1, nil
			}
		}
	}
	return "", 0, errors.New("unbalanced object")
}

// extractBounded anchors the array end on the neighbouring audioTracks key.
func extractBounded(page string) ([]CaptionTrack, error) {
	page = unescapeHex(page)
	for _, candidate := range []string{page, literalUnescaper.Replace(page)} {
		if m := boundedPattern.FindStringSubmatch(candidate); m != nil {
			return parseTracks(m[1])
		}
	}
	return nil, errNoTracks
}

// maxNextKeyCandidates bounds how many closing brackets extractNextKey
// will try before giving up.
const maxNextKeyCandidates = 256

// extractNextKey tries each ']' after the captionTracks key that is
// followed by the start of another key or the end of the enclosing object.
func extractNextKey(page string) ([]CaptionTrack, error) {
	page = literalUnescaper.Replace(unescapeHex(page))
	loc := fieldStart.FindStringIndex(page)
	if loc == nil {
		return nil, errNoTracks
	}
	start := loc[1] - 1
	tried := 0
	for i := start + 1; i < len(page) && tried < maxNextKeyCandidates; i++ {
		if page[i] != ']' || !nextKey.MatchString(page[i+1:min(len(page), i+256)]) {
			continue
		}
		tried++
		if tracks, err := decodeTracks(page[start : i+1]); err == nil {
			return tracks, nil
		}
	}
	return nil, errNoTracks
}
