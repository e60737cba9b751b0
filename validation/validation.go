package validation

import (
	"net/url"
	"strings"

	"github.com/nijaru/yt-transcript/transcript"
)

var youtubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
	"youtu.be":                 true,
}

// pathPrefixes are URL paths whose next segment is the video ID.
var pathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// ExtractVideoID accepts a bare video ID or a YouTube URL and returns the
// 11-character ID.
func ExtractVideoID(input string) (string, *transcript.Error) {
	const op = "validation.ExtractVideoID"

	input = strings.TrimSpace(input)
	if input == "" {
		return "", &transcript.Error{Kind: transcript.KindMissingVideoID, Op: op, Message: "video ID is required"}
	}
	if transcript.ValidVideoID(input) {
		return input, nil
	}

	invalid := &transcript.Error{Kind: transcript.KindInvalidRequest, Op: op, Message: "not a YouTube video ID or URL"}

	raw := input
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		invalid.Err = err
		return "", invalid
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", invalid
	}

	host := strings.ToLower(u.Hostname())
	if !youtubeHosts[host] {
		return "", invalid
	}

	var id string
	switch {
	case host == "youtu.be":
		id = firstSegment(u.Path, "/")
	case u.Path == "/watch":
		id = u.Query().Get("v")
	default:
		for _, prefix := range pathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				id = firstSegment(u.Path, prefix)
				break
			}
		}
	}

	if !transcript.ValidVideoID(id) {
		return "", invalid
	}
	return id, nil
}

func firstSegment(p, prefix string) string {
	rest := strings.TrimPrefix(p, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
