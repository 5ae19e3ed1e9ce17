package extractors

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/pkg/logger"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// maxPageBytes bounds how much of a watch page or caption file is read.
const maxPageBytes = 8 << 20

// Doer sends HTTP requests. *pkg/http.Client and *http.Client both satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var (
	bareVideoID    = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	videoIDPattern = []*regexp.Regexp{
		regexp.MustCompile(`v=([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
	}
)

// ExtractVideoID accepts a bare 11 character ID or a watch, short or embed URL.
func ExtractVideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if bareVideoID.MatchString(ref) {
		return ref, nil
	}
	for _, p := range videoIDPattern {
		if m := p.FindStringSubmatch(ref); m != nil {
			return m[1], nil
		}
	}
	return "", schema.E(schema.KindInvalidInput, "youtube.ExtractVideoID", "Invalid YouTube URL or video ID", nil)
}

// YouTubeConfig holds the endpoints and language preference of a YouTubeExtractor.
type YouTubeConfig struct {
	WatchURL  string
	OEmbedURL string
	Languages []string
}

// YouTubeExtractor reads caption tracks from the watch page's player response.
type YouTubeExtractor struct {
	client    Doer
	watchURL  string
	oembedURL string
	languages []string
	log       *logger.Logger
}

// NewYouTubeExtractor creates an extractor that sends every request through client.
func NewYouTubeExtractor(client Doer, cfg YouTubeConfig, log *logger.Logger) *YouTubeExtractor {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return &YouTubeExtractor{
		client:    client,
		watchURL:  cfg.WatchURL,
		oembedURL: cfg.OEmbedURL,
		languages: langs,
		log:       log,
	}
}

// captionTrack is one entry of captions.playerCaptionsTracklistRenderer.captionTracks.
type captionTrack struct {
	BaseURL      string
	LanguageCode string
	Generated    bool
}

// Fetch resolves videoRef, looks up the title and downloads the best caption track.
func (y *YouTubeExtractor) Fetch(ctx context.Context, videoRef string) (*schema.Transcript, error) {
	const op = "youtube.Fetch"

	videoID, err := ExtractVideoID(videoRef)
	if err != nil {
		return nil, err
	}
	log := y.log.WithField("video_id", videoID)

	title := y.title(ctx, videoID)

	page, err := y.get(ctx, y.watchURL+"?"+url.Values{"v": {videoID}, "hl": {"en"}}.Encode())
	if err != nil {
		return nil, schema.E(schema.KindSourceUnavailable, op, "failed to load the video page", err)
	}
	player, err := playerResponse(page)
	if err != nil {
		return nil, schema.E(schema.KindExtraction, op, "could not read the player response", err)
	}

	if status := gjson.GetBytes(player, "playabilityStatus.status").String(); status != "" && status != "OK" {
		reason := gjson.GetBytes(player, "playabilityStatus.reason").String()
		log.Warn(fmt.Sprintf("video not playable: %s %s", status, reason))
		return nil, schema.E(schema.KindSourceUnavailable, op,
			"The video is unavailable (private, removed, or region-locked).", fmt.Errorf("%s: %s", status, reason))
	}

	tracklist := gjson.GetBytes(player, "captions.playerCaptionsTracklistRenderer")
	if !tracklist.Exists() {
		return nil, schema.E(schema.KindTranscriptsDisabled, op, "Transcripts are disabled for this video.", nil)
	}

	var tracks []captionTrack
	tracklist.Get("captionTracks").ForEach(func(_, t gjson.Result) bool {
		tracks = append(tracks, captionTrack{
			BaseURL:      t.Get("baseUrl").String(),
			LanguageCode: t.Get("languageCode").String(),
			Generated:    t.Get("kind").String() == "asr",
		})
		return true
	})
	track, ok := pickTrack(tracks, y.languages)
	if !ok {
		return nil, schema.E(schema.KindNoTranscript, op, "No transcript found for this video.", nil)
	}

	body, err := y.get(ctx, track.BaseURL)
	if err != nil {
		return nil, schema.E(schema.KindSourceUnavailable, op, "failed to download the transcript", err)
	}
	segments, err := parseTimedText(body)
	if err != nil {
		return nil, schema.E(schema.KindExtraction, op, "could not parse the transcript", err)
	}
	if len(segments) == 0 {
		return nil, schema.E(schema.KindNoTranscript, op, "No transcript found for this video.", nil)
	}

	log.Info(fmt.Sprintf("fetched %d transcript segments (%s, generated=%t)", len(segments), track.LanguageCode, track.Generated))
	return &schema.Transcript{
		VideoID:      videoID,
		Title:        title,
		LanguageCode: track.LanguageCode,
		IsGenerated:  track.Generated,
		Segments:     segments,
	}, nil
}

// title asks the oEmbed endpoint for the video title. Failures fall back to "Video <id>".
func (y *YouTubeExtractor) title(ctx context.Context, videoID string) string {
	fallback := "Video " + videoID
	q := url.Values{
		"url":    {"https://www.youtube.com/watch?v=" + videoID},
		"format": {"json"},
	}
	body, err := y.get(ctx, y.oembedURL+"?"+q.Encode())
	if err != nil {
		y.log.WithField("video_id", videoID).Debug(fmt.Sprintf("oembed lookup failed: %v", err))
		return fallback
	}
	if t := strings.TrimSpace(gjson.GetBytes(body, "title").String()); t != "" {
		return t
	}
	return fallback
}

func (y *YouTubeExtractor) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", req.URL.Path, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

var playerMarker = []byte("ytInitialPlayerResponse = ")

// playerResponse cuts the ytInitialPlayerResponse object out of a watch page.
func playerResponse(page []byte) ([]byte, error) {
	i := bytes.Index(page, playerMarker)
	if i < 0 {
		return nil, fmt.Errorf("ytInitialPlayerResponse not found")
	}
	var raw json.RawMessage
	if err := json.NewDecoder(bytes.NewReader(page[i+len(playerMarker):])).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// pickTrack returns the first track matching the language preference, preferring
// manual captions over generated ones for the same language.
func pickTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	for _, generated := range []bool{false, true} {
		for _, lang := range languages {
			for _, t := range tracks {
				if t.Generated == generated && strings.EqualFold(t.LanguageCode, lang) && t.BaseURL != "" {
					return t, true
				}
			}
		}
	}
	return captionTrack{}, false
}

type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// parseTimedText converts the timedtext XML format to segments, skipping blank lines.
func parseTimedText(body []byte) ([]schema.TextSegment, error) {
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	segments := make([]schema.TextSegment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.Join(strings.Fields(html.UnescapeString(t.Body)), " ")
		if text == "" {
			continue
		}
		segments = append(segments, schema.TextSegment{Text: text, Start: t.Start, Duration: t.Dur})
	}
	return segments, nil
}

var _ interfaces.TranscriptExtractor = (*YouTubeExtractor)(nil)
