package services

import (
	"errors"
	"fmt"
	"strings"

	"studypack/internal/llm"
)

var basePackTemplate = llm.Template{
	Name:   "base_pack",
	System: "You are an expert educator who turns learning material into concise study packs for spaced repetition.",
	User: `Strictly respond with a JSON object {"title":"","summary":"","flashcards":[{"front":"","back":""}]}.
The title is a short descriptive name for the material (3-8 words).
The summary is 2-4 paragraphs capturing the key ideas in plain prose.
Create 8-15 flashcards. Ensure flashcards are atomic, unambiguous, and use active recall.
Use Markdown sparingly in answers (only for essential formatting).

Study material:
{{.Content}}`,
}

var quizTemplate = llm.Template{
	Name:   "quiz",
	System: "You are an expert educator who writes multiple-choice quizzes that test understanding, not trivia.",
	User: `Strictly respond with a JSON object {"questions":[{"question":"","options":["",""],"correctAnswer":""}]}.
Write {{.Count}} multiple-choice questions about the study material below.
Each question must have exactly 4 distinct options, and correctAnswer must be copied verbatim from options.
Cover different parts of the material; avoid near-duplicate questions.

Study material:
{{.Content}}`,
}

var rationaleTemplate = llm.Template{
	Name:   "review_rationale",
	System: "You are a study coach who explains spaced repetition schedules in one or two friendly sentences.",
	User: `Strictly respond with a JSON object {"reasoning":""}.
A learner just rated a flashcard "{{.Outcome}}". The schedule placed the next review {{.IntervalDays}} day(s) out, after {{.Repetitions}} successful repetition(s).
Explain briefly why that spacing helps. Do not suggest a different date or interval.

Card front: {{.Front}}`,
}

func tutorSystemPrompt(content string) string {
	var b strings.Builder
	b.WriteString("You are a patient tutor. Answer the student's questions using ONLY the study material below. ")
	b.WriteString("Do not use outside knowledge. If the material does not contain the answer, say so plainly. ")
	b.WriteString("Keep answers focused and conversational.\n\n")
	b.WriteString("Study material:\n")
	b.WriteString(content)
	return b.String()
}

// basePackResult is the output schema of the base-pack generation call.
type basePackResult struct {
	Title      string           `json:"title"`
	Summary    string           `json:"summary"`
	Flashcards []flashcardProto `json:"flashcards"`
}

type flashcardProto struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

func (r *basePackResult) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("pack title is empty")
	}
	for i, card := range r.Flashcards {
		if strings.TrimSpace(card.Front) == "" || strings.TrimSpace(card.Back) == "" {
			return fmt.Errorf("flashcard %d has an empty side", i)
		}
	}
	return nil
}

// quizResult is the output schema of the quiz generation call. The question
// count is a generation parameter, not validated here; option structure is.
type quizResult struct {
	Questions []quizQuestionProto `json:"questions"`
}

type quizQuestionProto struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

func (r *quizResult) Validate() error {
	for i, q := range r.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("question %d is empty", i)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d has %d options, need at least 2", i, len(q.Options))
		}
		seen := make(map[string]bool, len(q.Options))
		correctFound := false
		for _, opt := range q.Options {
			if seen[opt] {
				return fmt.Errorf("question %d has duplicate option %q", i, opt)
			}
			seen[opt] = true
			if opt == q.CorrectAnswer {
				correctFound = true
			}
		}
		if !correctFound {
			return fmt.Errorf("question %d: correct answer %q is not among its options", i, q.CorrectAnswer)
		}
	}
	return nil
}

type rationaleResult struct {
	Reasoning string `json:"reasoning"`
}
