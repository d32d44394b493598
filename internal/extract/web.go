package extract

import (
	"context"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"studypack/internal/models"
)

// extractWeb fetches a page and returns its visible body text with markup,
// scripts, and styles stripped.
func (e *Extractor) extractWeb(ctx context.Context, url string) (models.NormalizedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.NormalizedContent{}, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", "studypack/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return models.NormalizedContent{}, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.NormalizedContent{}, &FetchError{URL: url, Status: resp.StatusCode}
	}

	text := visibleText(resp.Body)
	if text == "" {
		return models.NormalizedContent{}, ErrEmptyContent
	}
	return models.NormalizedContent{Text: text, Kind: models.SourceWeb}, nil
}

// visibleText tokenizes HTML and collects text nodes outside script, style,
// and other non-rendered elements.
func visibleText(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)

	var parts []string
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way return what was collected.
			return normalize(strings.Join(parts, " "))
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func skippedTag(name string) bool {
	switch name {
	case "script", "style", "noscript", "template", "iframe", "title":
		return true
	}
	return false
}
