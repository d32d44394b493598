package srs

import (
	"fmt"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"studypack/internal/models"
)

// Strategy selects which scheduling algorithm the review service applies.
type Strategy string

const (
	StrategySM2  Strategy = "sm2"
	StrategyFSRS Strategy = "fsrs"
)

// ParseStrategy validates a configured strategy name, defaulting to SM-2.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(raw) {
	case "", StrategySM2:
		return StrategySM2, nil
	case StrategyFSRS:
		return StrategyFSRS, nil
	default:
		return "", fmt.Errorf("unknown scheduler strategy %q", raw)
	}
}

// FSRSScheduler applies the FSRS algorithm to a card's FSRS fields. The
// three product outcomes collapse onto FSRS ratings: a hard outcome is
// treated as a lapse.
type FSRSScheduler struct {
	params fsrs.Parameters
}

func NewFSRSScheduler() *FSRSScheduler {
	return &FSRSScheduler{params: fsrs.DefaultParam()}
}

func (s *FSRSScheduler) rating(outcome Outcome) fsrs.Rating {
	switch outcome {
	case OutcomeHard:
		return fsrs.Again
	case OutcomeEasy:
		return fsrs.Easy
	default:
		return fsrs.Good
	}
}

// Apply updates card.FSRS in place and returns the scheduling log entry.
func (s *FSRSScheduler) Apply(card *models.Flashcard, outcome Outcome, now time.Time) (fsrs.ReviewLog, error) {
	scheduling := s.params.Repeat(card.ToFSRSCard(), now)
	info, ok := scheduling[s.rating(outcome)]
	if !ok {
		return fsrs.ReviewLog{}, fmt.Errorf("rating for outcome %s not supported", outcome)
	}
	card.ApplyFSRSCard(info.Card)
	return info.ReviewLog, nil
}
