// Package extract converts heterogeneous content sources (pasted text, web
// pages, video transcripts, uploaded documents) into a single normalized
// plain-text representation.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"studypack/internal/models"
)

var (
	// ErrEmptyContent indicates the source yielded no text after normalization.
	ErrEmptyContent = errors.New("no extractable text in source")

	// ErrTranscriptUnavailable indicates a video has no caption track.
	ErrTranscriptUnavailable = errors.New("no caption track available for video")

	// ErrUnsupportedFormat indicates a document MIME type with no extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionFailed indicates the format-specific extractor failed.
	ErrExtractionFailed = errors.New("document extraction failed")
)

// FetchError reports a failed HTTP fetch: either a transport failure (Err
// set) or a non-2xx response (Status set).
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Source is the sealed set of content origins the extractor accepts.
type Source interface {
	isSource()
}

type TextSource struct {
	Text string
}

type WebSource struct {
	URL string
}

type VideoSource struct {
	URL string
}

type DocumentSource struct {
	Data []byte
	MIME string
}

func (TextSource) isSource()     {}
func (WebSource) isSource()      {}
func (VideoSource) isSource()    {}
func (DocumentSource) isSource() {}

// Extractor turns a Source into NormalizedContent. It is safe for concurrent
// use.
type Extractor struct {
	client *http.Client

	// captionsBaseURL points at the timed-text caption endpoint. Tests
	// redirect it at a local server.
	captionsBaseURL string
}

func NewExtractor(client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{
		client:          client,
		captionsBaseURL: defaultCaptionsBaseURL,
	}
}

// Extract produces the normalized plain text for one source. On error no
// partial text is returned.
func (e *Extractor) Extract(ctx context.Context, src Source) (models.NormalizedContent, error) {
	switch s := src.(type) {
	case TextSource:
		text := normalize(s.Text)
		if text == "" {
			return models.NormalizedContent{}, ErrEmptyContent
		}
		return models.NormalizedContent{Text: text, Kind: models.SourceText}, nil

	case WebSource:
		return e.extractWeb(ctx, s.URL)

	case VideoSource:
		videoID, ok := parseVideoID(s.URL)
		if !ok {
			// Not a recognized video URL shape; treat it as a plain web page.
			return e.extractWeb(ctx, s.URL)
		}
		return e.extractTranscript(ctx, videoID)

	case DocumentSource:
		text, err := extractDocumentText(s.Data, s.MIME)
		if err != nil {
			return models.NormalizedContent{}, err
		}
		text = normalize(text)
		if text == "" {
			return models.NormalizedContent{}, ErrEmptyContent
		}
		return models.NormalizedContent{Text: text, Kind: models.SourceDocument}, nil

	default:
		return models.NormalizedContent{}, fmt.Errorf("unsupported source type %T", src)
	}
}

// normalize collapses all runs of whitespace to single spaces and trims.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
