package srs

import (
	"testing"
	"time"

	"studypack/internal/models"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"":     StrategySM2,
		"sm2":  StrategySM2,
		"fsrs": StrategyFSRS,
	}
	for raw, want := range cases {
		got, err := ParseStrategy(raw)
		if err != nil {
			t.Fatalf("ParseStrategy(%q) failed: %v", raw, err)
		}
		if got != want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseStrategy("anki"); err == nil {
		t.Error("expected an error for an unknown strategy")
	}
}

func TestFSRSSchedulerApply(t *testing.T) {
	scheduler := NewFSRSScheduler()
	now := time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC)

	card := &models.Flashcard{Review: models.NewReviewState()}
	if _, err := scheduler.Apply(card, OutcomeEasy, now); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if !card.FSRS.Due.Valid {
		t.Fatal("expected a due date after the first review")
	}
	if card.FSRS.Due.Time.Before(now) {
		t.Errorf("due date %v precedes review time %v", card.FSRS.Due.Time, now)
	}
	if card.FSRS.Reps != 1 {
		t.Errorf("expected 1 rep, got %d", card.FSRS.Reps)
	}

	// A lapse bumps the lapse counter on a card that has left the new state.
	later := card.FSRS.Due.Time.Add(time.Hour)
	if _, err := scheduler.Apply(card, OutcomeHard, later); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if card.FSRS.Lapses != 1 {
		t.Errorf("expected 1 lapse after a hard review, got %d", card.FSRS.Lapses)
	}
}
