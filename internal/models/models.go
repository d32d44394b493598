package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

// SourceKind identifies the origin format of a piece of study content.
type SourceKind string

const (
	SourceText     SourceKind = "text"
	SourceWeb      SourceKind = "web"
	SourceVideo    SourceKind = "video"
	SourceDocument SourceKind = "document"
)

// NormalizedContent is the plain-text representation of a content source,
// independent of its origin format. Text is non-empty, whitespace-collapsed
// UTF-8 with no markup.
type NormalizedContent struct {
	Text string
	Kind SourceKind
}

// ReviewState holds the spaced-repetition bookkeeping for one flashcard.
// Repetitions is zero exactly when LastReviewed is null.
type ReviewState struct {
	LastReviewed sql.NullTime
	NextReview   sql.NullTime
	EaseFactor   float64
	Repetitions  int
	IntervalDays int
}

const InitialEaseFactor = 2.5

// NewReviewState returns the state assigned to a freshly generated card.
func NewReviewState() ReviewState {
	return ReviewState{EaseFactor: InitialEaseFactor}
}

// FSRSState carries the extra scheduling fields used when the FSRS strategy
// is enabled. It lives beside ReviewState so either scheduler can be applied
// to the same card row.
type FSRSState struct {
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
}

type Flashcard struct {
	ID        string
	PackID    string
	Position  int
	Front     string
	Back      string
	Review    ReviewState
	FSRS      FSRSState
	CreatedAt time.Time
	UpdatedAt time.Time
}

type QuizQuestion struct {
	ID            string
	PackID        string
	Position      int
	Question      string
	Options       []string
	CorrectAnswer string
}

// StudyPack is the generated bundle for one content source. It is immutable
// after creation except for per-card review state. SourceText keeps the
// normalized content the pack was generated from, so the tutor can answer
// questions against it later.
type StudyPack struct {
	ID         string
	Title      string
	Summary    string
	SourceText string
	SourceKind SourceKind
	Flashcards []Flashcard
	Quiz       []QuizQuestion
	CreatedAt  time.Time
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one entry in a tutor session transcript. Sessions are owned by
// the caller and not persisted.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

func (c *Flashcard) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     c.FSRS.Stability,
		Difficulty:    c.FSRS.Difficulty,
		ElapsedDays:   uint64(max(c.FSRS.ElapsedDays, 0)),
		ScheduledDays: uint64(max(c.FSRS.ScheduledDays, 0)),
		Reps:          uint64(max(c.FSRS.Reps, 0)),
		Lapses:        uint64(max(c.FSRS.Lapses, 0)),
		State:         fsrs.State(max(c.FSRS.State, 0)),
	}
	if c.FSRS.Due.Valid {
		card.Due = c.FSRS.Due.Time
	}
	if c.FSRS.LastReview.Valid {
		card.LastReview = c.FSRS.LastReview.Time
	}
	return card
}

func (c *Flashcard) ApplyFSRSCard(f fsrs.Card) {
	c.FSRS.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	c.FSRS.Stability = f.Stability
	c.FSRS.Difficulty = f.Difficulty
	c.FSRS.ElapsedDays = int(f.ElapsedDays)
	c.FSRS.ScheduledDays = int(f.ScheduledDays)
	c.FSRS.Reps = int(f.Reps)
	c.FSRS.Lapses = int(f.Lapses)
	c.FSRS.State = int(f.State)
	c.FSRS.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}

func max[T ~int | ~int32 | ~int64](a, b T) T {
	if a > b {
		return a
	}
	return b
}
