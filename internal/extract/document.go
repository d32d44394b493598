package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractDocumentText delegates raw document bytes to a format-specific
// extractor keyed by MIME type.
func extractDocumentText(data []byte, mimeType string) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	switch mediaType {
	case "application/pdf":
		return extractPDFText(data)
	case "text/plain", "text/markdown":
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrExtractionFailed, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", ErrExtractionFailed, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", ErrExtractionFailed, err)
	}
	return buf.String(), nil
}
