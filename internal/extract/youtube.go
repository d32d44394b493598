package extract

import (
	"context"
	"encoding/xml"
	stdhtml "html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"studypack/internal/models"
)

const defaultCaptionsBaseURL = "https://video.google.com/timedtext"

// parseVideoID classifies a URL against the hosting platform's canonical and
// short-link shapes and returns the video ID when it matches.
func parseVideoID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == "youtu.be":
		id := strings.Trim(u.Path, "/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
		return id, id != ""

	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		path := strings.Trim(u.Path, "/")
		if path == "watch" {
			id := u.Query().Get("v")
			return id, id != ""
		}
		for _, prefix := range []string{"shorts/", "embed/", "live/", "v/"} {
			if rest, ok := strings.CutPrefix(path, prefix); ok {
				if i := strings.IndexByte(rest, '/'); i >= 0 {
					rest = rest[:i]
				}
				return rest, rest != ""
			}
		}
	}
	return "", false
}

type captionTrack struct {
	LangCode string `xml:"lang_code,attr"`
	Name     string `xml:"name,attr"`
}

type captionTrackList struct {
	Tracks []captionTrack `xml:"track"`
}

type captionCue struct {
	Text string `xml:",chardata"`
}

type captionTranscript struct {
	Cues []captionCue `xml:"text"`
}

// extractTranscript fetches the caption track for a video and joins the cue
// text with single spaces.
func (e *Extractor) extractTranscript(ctx context.Context, videoID string) (models.NormalizedContent, error) {
	track, err := e.pickCaptionTrack(ctx, videoID)
	if err != nil {
		return models.NormalizedContent{}, err
	}

	query := url.Values{"v": {videoID}, "lang": {track.LangCode}}
	if track.Name != "" {
		query.Set("name", track.Name)
	}

	var transcript captionTranscript
	if err := e.fetchCaptionXML(ctx, query, &transcript); err != nil {
		return models.NormalizedContent{}, err
	}

	var parts []string
	for _, cue := range transcript.Cues {
		// Caption payloads double-escape entities; the XML decoder handles
		// one layer, UnescapeString the other.
		if text := normalize(stdhtml.UnescapeString(cue.Text)); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return models.NormalizedContent{}, ErrTranscriptUnavailable
	}

	return models.NormalizedContent{
		Text: strings.Join(parts, " "),
		Kind: models.SourceVideo,
	}, nil
}

// pickCaptionTrack lists available caption tracks and prefers an English one.
func (e *Extractor) pickCaptionTrack(ctx context.Context, videoID string) (captionTrack, error) {
	var list captionTrackList
	query := url.Values{"type": {"list"}, "v": {videoID}}
	if err := e.fetchCaptionXML(ctx, query, &list); err != nil {
		return captionTrack{}, err
	}
	if len(list.Tracks) == 0 {
		return captionTrack{}, ErrTranscriptUnavailable
	}
	for _, track := range list.Tracks {
		if track.LangCode == "en" || strings.HasPrefix(track.LangCode, "en-") {
			return track, nil
		}
	}
	return list.Tracks[0], nil
}

func (e *Extractor) fetchCaptionXML(ctx context.Context, query url.Values, out any) error {
	endpoint := e.captionsBaseURL + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{URL: endpoint, Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{URL: endpoint, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{URL: endpoint, Err: err}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		// The timed-text endpoint answers 200 with an empty body when a video
		// has no captions.
		return ErrTranscriptUnavailable
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return ErrTranscriptUnavailable
	}
	return nil
}
