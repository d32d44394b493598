package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studypack/internal/llm"
	"studypack/internal/models"
)

// Tutor answers questions strictly from a pack's source content. Each Ask is
// stateless: the caller owns the session history and appends both the new
// question and the returned answer itself.
type Tutor struct {
	client  llm.Client
	timeout time.Duration
}

func NewTutor(client llm.Client, timeout time.Duration) *Tutor {
	return &Tutor{client: client, timeout: timeout}
}

// Ask sends one tutoring turn. The content-only system framing is injected
// by the client on the first turn of a session (empty history); later turns
// carry the history verbatim as prior context.
func (t *Tutor) Ask(ctx context.Context, content string, history []models.ChatTurn, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	answer, err := t.client.Chat(ctx, tutorSystemPrompt(content), history, question)
	if err != nil {
		return "", fmt.Errorf("tutor turn: %w", err)
	}
	return answer, nil
}
