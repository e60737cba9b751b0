package transcript

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	textElement  = regexp.MustCompile(`(?s)<text\b([^>]*?)(?:/>|>(.*?)</text>)`)
	startAttr    = regexp.MustCompile(`\bstart="([^"]*)"`)
	srv3Element  = regexp.MustCompile(`(?s)<p\b([^>]*)>(.*?)</p>`)
	srv3TimeAttr = regexp.MustCompile(`\bt="([^"]*)"`)
	innerTag     = regexp.MustCompile(`<[^>]*>`)
	lineBreaks   = regexp.MustCompile(`[\r\n]+`)
)

// &amp; is resolved first so that double-encoded entities such as
// &amp;#39; still come out as plain characters.
var entityDecoder = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
)

// DecodeEntities resolves the five standard XML entities.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityDecoder.Replace(strings.ReplaceAll(s, "&amp;", "&"))
}

// CleanText decodes entities, folds line breaks into spaces and trims.
func CleanText(s string) string {
	s = DecodeEntities(s)
	s = lineBreaks.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ParseTimedText extracts segments from a timed-text document. Classic
// <text start="s"> bodies are preferred; srv3 <p t="ms"> bodies are used
// when no <text> element is present.
func ParseTimedText(doc string) []Segment {
	var segments []Segment
	if matches := textElement.FindAllStringSubmatch(doc, -1); len(matches) > 0 {
		for _, m := range matches {
			// Self-closing cues carry no text.
			if strings.HasSuffix(m[0], "/>") {
				continue
			}
			attr := startAttr.FindStringSubmatch(m[1])
			if attr == nil {
				continue
			}
			start, ok := floorSeconds(attr[1], 1)
			if !ok {
				continue
			}
			segments = appendSegment(segments, start, m[2])
		}
	} else {
		for _, m := range srv3Element.FindAllStringSubmatch(doc, -1) {
			attr := srv3TimeAttr.FindStringSubmatch(m[1])
			if attr == nil {
				continue
			}
			start, ok := floorSeconds(attr[1], 1000)
			if !ok {
				continue
			}
			segments = appendSegment(segments, start, innerTag.ReplaceAllString(m[2], ""))
		}
	}
	sortSegments(segments)
	return segments
}

func appendSegment(segments []Segment, start int, raw string) []Segment {
	text := CleanText(raw)
	if text == "" {
		return segments
	}
	return append(segments, Segment{Start: start, Text: text})
}

// floorSeconds parses v, divides by unit and floors to a non-negative
// whole second.
func floorSeconds(v string, unit float64) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return clampSeconds(f / unit), true
}

func clampSeconds(f float64) int {
	s := int(math.Floor(f))
	if s < 0 {
		return 0
	}
	return s
}

func sortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
}

var xmlFormats = map[string]bool{"srv1": true, "srv2": true, "srv3": true}

// EnsureXMLFormat forces an XML timed-text format on a caption URL.
func EnsureXMLFormat(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	current := q.Get("fmt")
	switch {
	case current == "":
		if u.RawQuery == "" {
			u.RawQuery = "fmt=srv1"
		} else {
			u.RawQuery += "&fmt=srv1"
		}
	case !xmlFormats[current]:
		q.Set("fmt", "srv1")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
