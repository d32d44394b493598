package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"studypack/internal/llm"
	"studypack/internal/models"
)

// fakeClient replays canned JSON per template name and records chat calls. It
// applies the same Validator contract as the real client.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error

	chatAnswer   string
	chatErr      error
	lastSystem   string
	lastHistory  []models.ChatTurn
	lastQuestion string
}

func (f *fakeClient) Generate(ctx context.Context, tmpl llm.Template, vars map[string]string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errs[tmpl.Name]; err != nil {
		return err
	}
	payload, ok := f.responses[tmpl.Name]
	if !ok {
		return fmt.Errorf("no canned response for template %s", tmpl.Name)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", llm.ErrSchemaMismatch, err)
	}
	if v, ok := out.(llm.Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", llm.ErrSchemaMismatch, err)
		}
	}
	return nil
}

func (f *fakeClient) Chat(ctx context.Context, system string, history []models.ChatTurn, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastSystem = system
	f.lastHistory = history
	f.lastQuestion = question
	return f.chatAnswer, f.chatErr
}

const sampleBaseJSON = `{
	"title": "Cell Biology Basics",
	"summary": "Cells are the unit of life.",
	"flashcards": [
		{"front": "What is the powerhouse of the cell?", "back": "The mitochondria."},
		{"front": "What does the nucleus hold?", "back": "The cell's DNA."}
	]
}`

const sampleQuizJSON = `{
	"questions": [
		{
			"question": "Which organelle produces ATP?",
			"options": ["Mitochondria", "Nucleus", "Ribosome", "Golgi"],
			"correctAnswer": "Mitochondria"
		}
	]
}`

func newTestPackGenerator(client llm.Client) *PackGenerator {
	quiz := NewQuizGenerator(client, time.Second)
	return NewPackGenerator(client, quiz, time.Second)
}

func TestGeneratePack(t *testing.T) {
	client := &fakeClient{responses: map[string]string{
		"base_pack": sampleBaseJSON,
		"quiz":      sampleQuizJSON,
	}}
	gen := newTestPackGenerator(client)

	content := models.NormalizedContent{Text: "cells and organelles", Kind: models.SourceWeb}
	pack, err := gen.GeneratePack(context.Background(), content)
	if err != nil {
		t.Fatalf("GeneratePack failed: %v", err)
	}

	if pack.ID == "" {
		t.Error("pack should be assigned an id")
	}
	if pack.Title != "Cell Biology Basics" {
		t.Errorf("unexpected title %q", pack.Title)
	}
	if pack.SourceText != content.Text || pack.SourceKind != models.SourceWeb {
		t.Errorf("pack should keep its source content, got %q/%q", pack.SourceText, pack.SourceKind)
	}
	if len(pack.Flashcards) != 2 {
		t.Fatalf("expected 2 flashcards, got %d", len(pack.Flashcards))
	}
	for i, card := range pack.Flashcards {
		if card.ID == "" || card.PackID != pack.ID {
			t.Errorf("card %d not linked to the pack", i)
		}
		if card.Position != i {
			t.Errorf("card %d has position %d", i, card.Position)
		}
		if card.Review.EaseFactor != models.InitialEaseFactor || card.Review.Repetitions != 0 {
			t.Errorf("card %d should start with fresh review state", i)
		}
		if card.Review.NextReview.Valid {
			t.Errorf("card %d should not have a next review before its first review", i)
		}
	}
	if len(pack.Quiz) != 1 {
		t.Fatalf("expected 1 quiz question, got %d", len(pack.Quiz))
	}
	if pack.Quiz[0].PackID != pack.ID {
		t.Error("quiz question not linked to the pack")
	}
}

func TestGeneratePackEmptyContent(t *testing.T) {
	gen := newTestPackGenerator(&fakeClient{})

	if _, err := gen.GeneratePack(context.Background(), models.NormalizedContent{}); err == nil {
		t.Error("expected an error for empty content")
	}
}

func TestGeneratePackQuizFailureDiscardsBase(t *testing.T) {
	quizErr := fmt.Errorf("%w: quiz upstream down", llm.ErrUpstreamRejected)
	client := &fakeClient{
		responses: map[string]string{"base_pack": sampleBaseJSON},
		errs:      map[string]error{"quiz": quizErr},
	}
	gen := newTestPackGenerator(client)

	pack, err := gen.GeneratePack(context.Background(), models.NormalizedContent{Text: "x", Kind: models.SourceText})
	if pack != nil {
		t.Fatal("no partial pack may be returned on failure")
	}
	if !errors.Is(err, llm.ErrPartialJoin) {
		t.Errorf("expected ErrPartialJoin when the sibling succeeded, got %v", err)
	}
	if !errors.Is(err, llm.ErrUpstreamRejected) {
		t.Errorf("expected the underlying failure preserved, got %v", err)
	}
}

func TestGeneratePackBothBranchesFail(t *testing.T) {
	client := &fakeClient{errs: map[string]error{
		"base_pack": fmt.Errorf("%w: base down", llm.ErrUpstreamRejected),
		"quiz":      fmt.Errorf("%w: quiz down", llm.ErrUpstreamRejected),
	}}
	gen := newTestPackGenerator(client)

	_, err := gen.GeneratePack(context.Background(), models.NormalizedContent{Text: "x", Kind: models.SourceText})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, llm.ErrPartialJoin) {
		t.Errorf("partial join only applies when one branch succeeded, got %v", err)
	}
}

func TestGenerateQuizValidation(t *testing.T) {
	// correctAnswer not among the options.
	client := &fakeClient{responses: map[string]string{
		"quiz": `{"questions":[{"question":"Q?","options":["a","b"],"correctAnswer":"c"}]}`,
	}}
	gen := NewQuizGenerator(client, time.Second)

	_, err := gen.GenerateQuiz(context.Background(), models.NormalizedContent{Text: "x"}, 1)
	if !errors.Is(err, llm.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}

	if _, err := gen.GenerateQuiz(context.Background(), models.NormalizedContent{Text: "x"}, 0); err == nil {
		t.Error("expected an error for a non-positive count")
	}
}

func TestQuizResultValidate(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		valid   bool
	}{
		{"ok", `{"questions":[{"question":"Q?","options":["a","b","c","d"],"correctAnswer":"b"}]}`, true},
		{"empty question", `{"questions":[{"question":" ","options":["a","b"],"correctAnswer":"a"}]}`, false},
		{"single option", `{"questions":[{"question":"Q?","options":["a"],"correctAnswer":"a"}]}`, false},
		{"duplicate options", `{"questions":[{"question":"Q?","options":["a","a"],"correctAnswer":"a"}]}`, false},
		{"answer missing", `{"questions":[{"question":"Q?","options":["a","b"],"correctAnswer":"z"}]}`, false},
	}

	for _, tc := range cases {
		var result quizResult
		if err := json.Unmarshal([]byte(tc.payload), &result); err != nil {
			t.Fatalf("%s: bad fixture: %v", tc.name, err)
		}
		err := result.Validate()
		if tc.valid && err != nil {
			t.Errorf("%s: expected valid, got %v", tc.name, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("%s: expected a validation error", tc.name)
		}
	}
}

func TestBasePackResultValidate(t *testing.T) {
	ok := basePackResult{Title: "T", Flashcards: []flashcardProto{{Front: "f", Back: "b"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("expected valid, got %v", err)
	}

	missingTitle := basePackResult{Flashcards: []flashcardProto{{Front: "f", Back: "b"}}}
	if err := missingTitle.Validate(); err == nil {
		t.Error("expected an error for a missing title")
	}

	emptySide := basePackResult{Title: "T", Flashcards: []flashcardProto{{Front: "f", Back: " "}}}
	if err := emptySide.Validate(); err == nil {
		t.Error("expected an error for an empty card side")
	}
}

func TestTutorAsk(t *testing.T) {
	client := &fakeClient{chatAnswer: "Mitochondria make ATP."}
	tutor := NewTutor(client, time.Second)

	answer, err := tutor.Ask(context.Background(), "the study material", nil, "What makes ATP?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "Mitochondria make ATP." {
		t.Errorf("unexpected answer %q", answer)
	}
	if !strings.Contains(client.lastSystem, "the study material") {
		t.Error("system framing should embed the pack content")
	}
	if client.lastQuestion != "What makes ATP?" {
		t.Errorf("unexpected question %q", client.lastQuestion)
	}

	history := []models.ChatTurn{
		{Role: models.RoleUser, Content: "What makes ATP?"},
		{Role: models.RoleAssistant, Content: "Mitochondria make ATP."},
	}
	if _, err := tutor.Ask(context.Background(), "the study material", history, "And where?"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if len(client.lastHistory) != 2 {
		t.Errorf("history should be passed through, got %d turns", len(client.lastHistory))
	}

	if _, err := tutor.Ask(context.Background(), "content", nil, "  "); err == nil {
		t.Error("expected an error for an empty question")
	}
}
