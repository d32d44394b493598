package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	"studypack/internal/llm"
	"studypack/internal/models"
	"studypack/internal/srs"
)

// ReviewService applies a scheduling strategy to a reviewed flashcard and
// persists the new state. The SM-2 computation itself is pure and lives in
// the srs package; this service only loads, applies, and stores.
type ReviewService struct {
	store    *PackStore
	strategy srs.Strategy
	fsrs     *srs.FSRSScheduler
	client   llm.Client
	timeout  time.Duration
}

func NewReviewService(store *PackStore, strategy srs.Strategy, client llm.Client, timeout time.Duration) *ReviewService {
	return &ReviewService{
		store:    store,
		strategy: strategy,
		fsrs:     srs.NewFSRSScheduler(),
		client:   client,
		timeout:  timeout,
	}
}

// ReviewResult carries the updated card plus an optional human-readable
// rationale. The rationale is presentational only: it never influences the
// computed schedule, and a rationale failure never fails the review.
type ReviewResult struct {
	Card      *models.Flashcard
	Rationale string
}

func (s *ReviewService) ReviewCard(ctx context.Context, cardID string, outcome srs.Outcome, withRationale bool) (*ReviewResult, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch s.strategy {
	case srs.StrategyFSRS:
		if _, err := s.fsrs.Apply(card, outcome, now); err != nil {
			return nil, fmt.Errorf("apply fsrs schedule: %w", err)
		}
		// Mirror the FSRS due date into next_review so due queries behave
		// the same under either strategy.
		card.Review.LastReviewed = sql.NullTime{Time: now, Valid: true}
		card.Review.NextReview = card.FSRS.Due
	default:
		card.Review = srs.Review(card.Review, outcome, now)
	}
	card.UpdatedAt = now

	if err := s.store.UpdateReviewState(ctx, card); err != nil {
		return nil, err
	}
	if err := s.store.LogReview(ctx, card, outcome.String(), now); err != nil {
		return nil, err
	}

	result := &ReviewResult{Card: card}
	if withRationale {
		result.Rationale = s.rationale(ctx, card, outcome)
	}
	return result, nil
}

// rationale asks the generation client for a short explanation of the
// computed schedule. Failures degrade to an empty string.
func (s *ReviewService) rationale(ctx context.Context, card *models.Flashcard, outcome srs.Outcome) string {
	if s.client == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result rationaleResult
	vars := map[string]string{
		"Outcome":      outcome.String(),
		"IntervalDays": strconv.Itoa(card.Review.IntervalDays),
		"Repetitions":  strconv.Itoa(card.Review.Repetitions),
		"Front":        card.Front,
	}
	if err := s.client.Generate(ctx, rationaleTemplate, vars, &result); err != nil {
		log.Printf("review rationale for card %s unavailable: %v", card.ID, err)
		return ""
	}
	return result.Reasoning
}
