// Package llm is the boundary to the external text-generation service. The
// rest of the system depends only on the Client interface, so generation
// logic is testable with canned structured responses and no network access.
package llm

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"studypack/internal/models"
)

// Template is a prompt template: a fixed system instruction plus a user
// prompt rendered with text/template from the supplied variables.
type Template struct {
	Name   string
	System string
	User   string
}

func (t Template) render(vars map[string]string) (string, error) {
	tmpl, err := template.New(t.Name).Option("missingkey=error").Parse(t.User)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Validator is implemented by output schemas that carry structural
// invariants beyond what JSON decoding checks. A validation failure is
// reported as ErrSchemaMismatch.
type Validator interface {
	Validate() error
}

// Client is the narrow capability interface to the generation service.
// Implementations must be safe for concurrent use and must validate the
// payload against the output schema before returning success.
type Client interface {
	// Generate renders tmpl with vars, requests structured JSON from the
	// model, and decodes it into out.
	Generate(ctx context.Context, tmpl Template, vars map[string]string, out any) error

	// Chat answers a free-text question given prior conversation turns. The
	// system framing is included only when history is empty; later turns
	// carry the earlier context verbatim.
	Chat(ctx context.Context, system string, history []models.ChatTurn, question string) (string, error)
}

// extractJSON removes markdown code-fence formatting if present and trims
// the payload down to the outermost JSON object.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		start := 3
		if newlineIdx := strings.Index(content[start:], "\n"); newlineIdx != -1 {
			start += newlineIdx + 1
		}
		if endIdx := strings.Index(content[start:], "```"); endIdx != -1 {
			content = content[start : start+endIdx]
		} else {
			content = content[start:]
		}
	}

	content = strings.TrimSpace(content)

	if startIdx := strings.Index(content, "{"); startIdx != -1 {
		if endIdx := strings.LastIndex(content, "}"); endIdx != -1 && endIdx > startIdx {
			content = content[startIdx : endIdx+1]
		}
	}

	return strings.TrimSpace(content)
}
