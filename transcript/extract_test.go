package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainPage = `<html><script>var ytInitialPlayerResponse = {"playabilityStatus":{"status":"OK"},` +
	`"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
	`{"baseUrl":"https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ&lang=en","name":{"simpleText":"English"},"languageCode":"en"},` +
	`{"baseUrl":"https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ&lang=en&kind=asr","languageCode":"en","kind":"asr"}],` +
	`"audioTracks":[{"captionTrackIndices":[0,1]}]}}};</script></html>`

// nestedPage uses runs-style names, which defeats the non-greedy field match.
const nestedPage = `<script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
	`{"baseUrl":"https://example.com/tt?lang=de","name":{"runs":[{"text":"Deutsch"}]},"languageCode":"de"},` +
	`{"baseUrl":"https://example.com/tt?lang=en","name":{"runs":[{"text":"English"}]},"languageCode":"en"}],` +
	`"audioTracks":[]}}};</script>`

func TestExtractFieldHexEscaped(t *testing.T) {
	plain := `x = {"captionTracks":[{"baseUrl":"https://example.com/tt?v=1","languageCode":"en"}]};`
	hex := `x = "{\x22captionTracks\x22:\x5b{\x22baseUrl\x22:\x22https://example.com/tt?v=1\x22,\x22languageCode\x22:\x22en\x22}\x5d}";`

	want, err := extractField(plain)
	require.NoError(t, err)
	got, err := extractField(hex)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, []CaptionTrack{{BaseURL: "https://example.com/tt?v=1", LanguageCode: "en"}}, got)
}

func TestUnescapeHexHighCodePoints(t *testing.T) {
	assert.Equal(t, "café", unescapeHex(`caf\xe9`))
	assert.Equal(t, `"x"`, unescapeHex(`\x22x\x22`))
	assert.Equal(t, "no escapes", unescapeHex("no escapes"))
}

func TestExtractFieldBackslashEscaped(t *testing.T) {
	page := `ytcfg.set({"PLAYER_VARS":"{\"captionTracks\":[{\"baseUrl\":\"https://example.com/tt?v=1\",\"languageCode\":\"fr\",\"kind\":\"asr\"}]}"});`

	got, err := extractField(page)
	require.NoError(t, err)
	assert.Equal(t, []CaptionTrack{{BaseURL: "https://example.com/tt?v=1", LanguageCode: "fr", Kind: "asr"}}, got)
}

func TestExtractFieldPlainPage(t *testing.T) {
	got, err := extractField(plainPage)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ&lang=en", got[0].BaseURL)
	assert.True(t, got[1].IsAutoGenerated())
}

func TestExtractFieldFailsOnNestedArrays(t *testing.T) {
	_, err := extractField(nestedPage)
	assert.Error(t, err)
}

func TestExtractPlayerResponse(t *testing.T) {
	got, err := extractPlayerResponse(nestedPage)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "de", got[0].LanguageCode)
	assert.Equal(t, "en", got[1].LanguageCode)
}

func TestExtractPlayerResponseRequiresTerminator(t *testing.T) {
	page := `var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"u"}]}}}</script>`
	_, err := extractPlayerResponse(page)
	assert.Error(t, err)
}

func TestExtractPlayerResponseIgnoresBracesInStrings(t *testing.T) {
	page := `var ytInitialPlayerResponse = {"videoDetails":{"title":"a } tricky \" { title"},` +
		`"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"https://example.com/tt","languageCode":"en"}]}}};`
	got, err := extractPlayerResponse(page)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestExtractBounded(t *testing.T) {
	page := `{"captionTracks":[{"baseUrl":"u1","name":{"runs":[{"text":"English"}]},"languageCode":"en"}],"audioTracks":[]}`
	got, err := extractBounded(page)
	require.NoError(t, err)
	assert.Equal(t, []CaptionTrack{{BaseURL: "u1", LanguageCode: "en"}}, got)
}

func TestExtractNextKeyToleratesReorderedSiblings(t *testing.T) {
	page := `{"captionTracks":[{"baseUrl":"u1","name":{"runs":[{"text":"English"}]},"languageCode":"en"}],"translationLanguages":[]}`

	_, err := extractBounded(page)
	require.Error(t, err)

	got, err := extractNextKey(page)
	require.NoError(t, err)
	assert.Equal(t, []CaptionTrack{{BaseURL: "u1", LanguageCode: "en"}}, got)
}

func TestExtractNextKeyAtObjectEnd(t *testing.T) {
	page := `{"captionTracks":[{"baseUrl":"u1","name":{"runs":[{"text":"x"}]}}]}`
	got, err := extractNextKey(page)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestExtractCaptionTracksChain(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		wantCount int
		wantName  string
	}{
		{"field wins on plain page", plainPage, 2, "field"},
		{"player response on nested names", nestedPage, 2, "player-response"},
		{
			"next key when nothing else matches",
			`{"captionTracks":[{"baseUrl":"u1","name":{"runs":[{"text":"x"}]}}],"isTranslatable":true}`,
			1, "next-key",
		},
		{"no captions at all", `<html><body>nothing</body></html>`, 0, ""},
		{"empty track list", `{"captionTracks":[],"audioTracks":[]}`, 0, ""},
		{"tracks without urls", `{"captionTracks":[{"languageCode":"en"}],"audioTracks":[]}`, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracks, name := ExtractCaptionTracks(tt.page, DefaultExtractors)
			assert.Len(t, tracks, tt.wantCount)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestExtractCaptionTracksSurvivesPanickingExtractor(t *testing.T) {
	chain := []Extractor{
		{Name: "boom", Extract: func(string) ([]CaptionTrack, error) { panic("bad index") }},
		{Name: "field", Extract: extractField},
	}
	tracks, name := ExtractCaptionTracks(plainPage, chain)
	assert.Len(t, tracks, 2)
	assert.Equal(t, "field", name)
}

func TestSelectTrack(t *testing.T) {
	manualEN := CaptionTrack{BaseURL: "manual-en", LanguageCode: "en-US"}
	manualEN2 := CaptionTrack{BaseURL: "manual-en-2", LanguageCode: "en"}
	asrEN := CaptionTrack{BaseURL: "asr-en", LanguageCode: "en", Kind: "asr"}
	manualDE := CaptionTrack{BaseURL: "manual-de", LanguageCode: "de"}
	asrDE := CaptionTrack{BaseURL: "asr-de", LanguageCode: "de", Kind: "asr"}

	tests := []struct {
		name   string
		tracks []CaptionTrack
		want   string
	}{
		{"manual english beats asr english", []CaptionTrack{asrEN, manualEN}, "manual-en"},
		{"manual other language beats asr english", []CaptionTrack{asrEN, manualDE}, "manual-de"},
		{"asr english beats asr other", []CaptionTrack{asrDE, asrEN}, "asr-en"},
		{"first when nothing matches", []CaptionTrack{asrDE}, "asr-de"},
		{"first in document order on ties", []CaptionTrack{manualEN, manualEN2}, "manual-en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectTrack(tt.tracks)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.BaseURL)
		})
	}

	_, ok := SelectTrack(nil)
	assert.False(t, ok)
}
