package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"studypack/internal/llm"
	"studypack/internal/models"
)

// QuizGenerator produces a multiple-choice quiz from normalized content with
// a single generation call.
type QuizGenerator struct {
	client  llm.Client
	timeout time.Duration
}

func NewQuizGenerator(client llm.Client, timeout time.Duration) *QuizGenerator {
	return &QuizGenerator{client: client, timeout: timeout}
}

// GenerateQuiz asks for count questions. The count is a generation
// parameter, not enforced on the response; structural invariants (at least
// two unique options, correct answer among them) are, and violations surface
// as llm.ErrSchemaMismatch. Question order follows the model output.
func (g *QuizGenerator) GenerateQuiz(ctx context.Context, content models.NormalizedContent, count int) ([]models.QuizQuestion, error) {
	if count <= 0 {
		return nil, fmt.Errorf("quiz question count must be positive, got %d", count)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var result quizResult
	vars := map[string]string{
		"Count":   strconv.Itoa(count),
		"Content": content.Text,
	}
	if err := g.client.Generate(ctx, quizTemplate, vars, &result); err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}

	questions := make([]models.QuizQuestion, 0, len(result.Questions))
	for i, proto := range result.Questions {
		questions = append(questions, models.QuizQuestion{
			ID:            uuid.NewString(),
			Position:      i,
			Question:      proto.Question,
			Options:       proto.Options,
			CorrectAnswer: proto.CorrectAnswer,
		})
	}
	return questions, nil
}
