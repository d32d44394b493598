package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"studypack/internal/llm"
	"studypack/internal/models"
)

// packQuizQuestionCount is the fixed quiz size generated as part of a pack.
const packQuizQuestionCount = 5

// PackGenerator orchestrates the generation of a complete study pack: a
// base-pack call (title, flashcards, summary) and a quiz call issued
// concurrently and joined all-or-nothing.
type PackGenerator struct {
	client  llm.Client
	quiz    *QuizGenerator
	timeout time.Duration
}

func NewPackGenerator(client llm.Client, quiz *QuizGenerator, timeout time.Duration) *PackGenerator {
	return &PackGenerator{client: client, quiz: quiz, timeout: timeout}
}

// GeneratePack fans out the two generation requests, waits for both, and
// assembles the pack. If either branch fails the sibling is cancelled, both
// are still awaited, and the first failure is reported; no partial pack is
// ever returned. The returned pack is not yet persisted.
func (g *PackGenerator) GeneratePack(ctx context.Context, content models.NormalizedContent) (*models.StudyPack, error) {
	if content.Text == "" {
		return nil, fmt.Errorf("cannot generate a pack from empty content")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	var (
		wg        sync.WaitGroup
		base      basePackResult
		baseErr   error
		questions []models.QuizQuestion
		quizErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if baseErr = g.generateBase(ctx, content, &base); baseErr != nil {
			fail(baseErr)
		}
	}()
	go func() {
		defer wg.Done()
		if questions, quizErr = g.quiz.GenerateQuiz(ctx, content, packQuizQuestionCount); quizErr != nil {
			fail(quizErr)
		}
	}()
	wg.Wait()

	if firstErr != nil {
		if baseErr == nil || quizErr == nil {
			// The sibling finished cleanly before the failure; its result is
			// discarded rather than persisted as a partial pack.
			return nil, fmt.Errorf("%w: %w", llm.ErrPartialJoin, firstErr)
		}
		return nil, firstErr
	}

	now := time.Now().UTC()
	pack := &models.StudyPack{
		ID:         uuid.NewString(),
		Title:      base.Title,
		Summary:    base.Summary,
		SourceText: content.Text,
		SourceKind: content.Kind,
		CreatedAt:  now,
	}

	pack.Flashcards = make([]models.Flashcard, 0, len(base.Flashcards))
	for i, proto := range base.Flashcards {
		pack.Flashcards = append(pack.Flashcards, models.Flashcard{
			ID:        uuid.NewString(),
			PackID:    pack.ID,
			Position:  i,
			Front:     proto.Front,
			Back:      proto.Back,
			Review:    models.NewReviewState(),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	pack.Quiz = questions
	for i := range pack.Quiz {
		pack.Quiz[i].PackID = pack.ID
	}

	return pack, nil
}

func (g *PackGenerator) generateBase(ctx context.Context, content models.NormalizedContent, out *basePackResult) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vars := map[string]string{"Content": content.Text}
	if err := g.client.Generate(ctx, basePackTemplate, vars, out); err != nil {
		return fmt.Errorf("generate base pack: %w", err)
	}
	return nil
}
