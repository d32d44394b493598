// Package srs implements the spaced-repetition scheduling used for
// flashcard review. The default algorithm is an SM-2 variant implemented as
// a pure function over ReviewState; an alternative FSRS strategy is
// available behind the same review service.
package srs

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"studypack/internal/models"
)

// Outcome is the user's self-assessment of one review.
type Outcome int

const (
	OutcomeHard Outcome = iota
	OutcomeMedium
	OutcomeEasy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHard:
		return "hard"
	case OutcomeMedium:
		return "medium"
	case OutcomeEasy:
		return "easy"
	default:
		return "unknown"
	}
}

// ParseOutcome maps the wire rating to an Outcome.
func ParseOutcome(raw string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hard":
		return OutcomeHard, nil
	case "medium":
		return OutcomeMedium, nil
	case "easy":
		return OutcomeEasy, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", raw)
	}
}

// Params tunes the SM-2 schedule. The defaults match the product's review
// ladder: 1 day, 6 days, then interval x ease.
type Params struct {
	MinEaseFactor  float64
	EasyBonus      float64
	HardPenalty    float64
	FirstInterval  int
	SecondInterval int
}

func DefaultParams() Params {
	return Params{
		MinEaseFactor:  1.3,
		EasyBonus:      0.1,
		HardPenalty:    0.2,
		FirstInterval:  1,
		SecondInterval: 6,
	}
}

// Review computes the next review state from the current state and one
// outcome. It is pure: no I/O, no clock access beyond the supplied now, and
// it never fails. The input state is not mutated.
func Review(state models.ReviewState, outcome Outcome, now time.Time) models.ReviewState {
	return ReviewWithParams(state, outcome, now, DefaultParams())
}

// ReviewWithParams is Review with explicit tuning parameters.
func ReviewWithParams(state models.ReviewState, outcome Outcome, now time.Time, params Params) models.ReviewState {
	next := state

	if outcome == OutcomeHard {
		next.Repetitions = 0
		next.IntervalDays = params.FirstInterval
		next.EaseFactor = clampEase(state.EaseFactor-params.HardPenalty, params.MinEaseFactor)
	} else {
		next.Repetitions = state.Repetitions + 1
		if outcome == OutcomeEasy {
			next.EaseFactor = clampEase(state.EaseFactor+params.EasyBonus, params.MinEaseFactor)
		} else {
			next.EaseFactor = clampEase(state.EaseFactor, params.MinEaseFactor)
		}
		switch next.Repetitions {
		case 1:
			next.IntervalDays = params.FirstInterval
		case 2:
			next.IntervalDays = params.SecondInterval
		default:
			next.IntervalDays = int(math.Round(float64(state.IntervalDays) * next.EaseFactor))
		}
	}

	next.LastReviewed = sql.NullTime{Time: now, Valid: true}
	next.NextReview = sql.NullTime{Time: now.AddDate(0, 0, next.IntervalDays), Valid: true}
	return next
}

func clampEase(ef, floor float64) float64 {
	if ef < floor {
		return floor
	}
	return ef
}
