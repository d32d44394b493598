package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"studypack/internal/models"
)

var (
	// ErrPackNotFound indicates the requested study pack does not exist.
	ErrPackNotFound = errors.New("study pack not found")

	// ErrCardNotFound indicates the requested flashcard does not exist.
	ErrCardNotFound = errors.New("flashcard not found")
)

// PackStore persists study packs, flashcards, and quiz questions in SQLite.
type PackStore struct {
	db *sql.DB
}

func NewPackStore(db *sql.DB) *PackStore {
	return &PackStore{db: db}
}

// PackSummary is the listing view of a pack, without its cards.
type PackSummary struct {
	ID             string
	Title          string
	CreatedAt      time.Time
	FlashcardCount int
	QuizCount      int
}

const cardColumns = `
	id, pack_id, position, front, back,
	last_reviewed, next_review, ease_factor, repetitions, interval_days,
	fsrs_due, fsrs_stability, fsrs_difficulty, fsrs_elapsed_days, fsrs_scheduled_days,
	fsrs_reps, fsrs_lapses, fsrs_state, fsrs_last_review,
	created_at, updated_at`

// CreatePack writes the pack and all of its cards and questions in a single
// transaction, so a pack is either fully persisted or absent.
func (s *PackStore) CreatePack(ctx context.Context, pack *models.StudyPack) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO study_packs (id, title, summary, source_text, source_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, pack.ID, pack.Title, pack.Summary, pack.SourceText, pack.SourceKind, pack.CreatedAt); err != nil {
		return fmt.Errorf("insert pack: %w", err)
	}

	cardStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flashcards (id, pack_id, position, front, back,
			last_reviewed, next_review, ease_factor, repetitions, interval_days,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("prepare card insert: %w", err)
	}
	defer cardStmt.Close()

	for i := range pack.Flashcards {
		card := &pack.Flashcards[i]
		if _, err = cardStmt.ExecContext(ctx,
			card.ID, card.PackID, card.Position, card.Front, card.Back,
			nullTimeArg(card.Review.LastReviewed),
			nullTimeArg(card.Review.NextReview),
			card.Review.EaseFactor,
			card.Review.Repetitions,
			card.Review.IntervalDays,
			card.CreatedAt, card.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert flashcard %q: %w", card.Front, err)
		}
	}

	questionStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quiz_questions (id, pack_id, position, question, options_json, correct_answer)
		VALUES (?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("prepare question insert: %w", err)
	}
	defer questionStmt.Close()

	for i := range pack.Quiz {
		question := &pack.Quiz[i]
		optionsJSON, jerr := json.Marshal(question.Options)
		if jerr != nil {
			return fmt.Errorf("encode options for question %q: %w", question.Question, jerr)
		}
		if _, err = questionStmt.ExecContext(ctx,
			question.ID, question.PackID, question.Position,
			question.Question, string(optionsJSON), question.CorrectAnswer,
		); err != nil {
			return fmt.Errorf("insert quiz question %q: %w", question.Question, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit pack: %w", err)
	}
	return nil
}

func (s *PackStore) GetPack(ctx context.Context, id string) (*models.StudyPack, error) {
	pack := &models.StudyPack{}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, summary, source_text, source_kind, created_at
		FROM study_packs WHERE id = ?;
	`, id)
	if err := row.Scan(&pack.ID, &pack.Title, &pack.Summary, &pack.SourceText, &pack.SourceKind, &pack.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackNotFound
		}
		return nil, fmt.Errorf("scan pack: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM flashcards WHERE pack_id = ? ORDER BY position ASC;
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		pack.Flashcards = append(pack.Flashcards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flashcards: %w", err)
	}

	qrows, err := s.db.QueryContext(ctx, `
		SELECT id, pack_id, position, question, options_json, correct_answer
		FROM quiz_questions WHERE pack_id = ? ORDER BY position ASC;
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	defer qrows.Close()

	for qrows.Next() {
		var question models.QuizQuestion
		var optionsJSON string
		if err := qrows.Scan(
			&question.ID, &question.PackID, &question.Position,
			&question.Question, &optionsJSON, &question.CorrectAnswer,
		); err != nil {
			return nil, fmt.Errorf("scan quiz question: %w", err)
		}
		if err := json.Unmarshal([]byte(optionsJSON), &question.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %s: %w", question.ID, err)
		}
		pack.Quiz = append(pack.Quiz, question)
	}
	if err := qrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quiz questions: %w", err)
	}

	return pack, nil
}

func (s *PackStore) ListPacks(ctx context.Context) ([]PackSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.title, p.created_at,
			(SELECT COUNT(*) FROM flashcards f WHERE f.pack_id = p.id),
			(SELECT COUNT(*) FROM quiz_questions q WHERE q.pack_id = p.id)
		FROM study_packs p
		ORDER BY p.created_at DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	defer rows.Close()

	var summaries []PackSummary
	for rows.Next() {
		var summary PackSummary
		if err := rows.Scan(
			&summary.ID, &summary.Title, &summary.CreatedAt,
			&summary.FlashcardCount, &summary.QuizCount,
		); err != nil {
			return nil, fmt.Errorf("scan pack summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packs: %w", err)
	}
	return summaries, nil
}

func (s *PackStore) DeletePack(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM study_packs WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete pack: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPackNotFound
	}
	return nil
}

func (s *PackStore) GetCard(ctx context.Context, id string) (*models.Flashcard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM flashcards WHERE id = ?;
	`, id)
	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

// DueCards returns cards whose next review is at or before now, oldest due
// first. Cards that have never been reviewed are due immediately.
func (s *PackStore) DueCards(ctx context.Context, now time.Time, limit int) ([]models.Flashcard, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM flashcards
		WHERE next_review IS NULL OR next_review <= ?
		ORDER BY next_review IS NULL DESC, next_review ASC, created_at ASC
		LIMIT ?;
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Flashcard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due cards: %w", err)
	}
	return cards, nil
}

// UpdateReviewState overwrites the card's scheduling fields. Each review
// event fully replaces the previous state, so last-write-wins is safe.
func (s *PackStore) UpdateReviewState(ctx context.Context, card *models.Flashcard) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE flashcards
		SET last_reviewed = ?, next_review = ?, ease_factor = ?, repetitions = ?, interval_days = ?,
			fsrs_due = ?, fsrs_stability = ?, fsrs_difficulty = ?, fsrs_elapsed_days = ?,
			fsrs_scheduled_days = ?, fsrs_reps = ?, fsrs_lapses = ?, fsrs_state = ?, fsrs_last_review = ?,
			updated_at = ?
		WHERE id = ?;
	`,
		nullTimeArg(card.Review.LastReviewed),
		nullTimeArg(card.Review.NextReview),
		card.Review.EaseFactor,
		card.Review.Repetitions,
		card.Review.IntervalDays,
		nullTimeArg(card.FSRS.Due),
		card.FSRS.Stability,
		card.FSRS.Difficulty,
		card.FSRS.ElapsedDays,
		card.FSRS.ScheduledDays,
		card.FSRS.Reps,
		card.FSRS.Lapses,
		card.FSRS.State,
		nullTimeArg(card.FSRS.LastReview),
		card.UpdatedAt,
		card.ID,
	)
	if err != nil {
		return fmt.Errorf("update review state for card %s: %w", card.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCardNotFound
	}
	return nil
}

// LogReview appends one entry to the review audit log.
func (s *PackStore) LogReview(ctx context.Context, card *models.Flashcard, outcome string, reviewedAt time.Time) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO review_logs (card_id, outcome, interval_days, ease_factor, repetitions, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, card.ID, outcome, card.Review.IntervalDays, card.Review.EaseFactor, card.Review.Repetitions, reviewedAt); err != nil {
		return fmt.Errorf("insert review log: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Flashcard, error) {
	card := &models.Flashcard{}
	if err := row.Scan(
		&card.ID,
		&card.PackID,
		&card.Position,
		&card.Front,
		&card.Back,
		&card.Review.LastReviewed,
		&card.Review.NextReview,
		&card.Review.EaseFactor,
		&card.Review.Repetitions,
		&card.Review.IntervalDays,
		&card.FSRS.Due,
		&card.FSRS.Stability,
		&card.FSRS.Difficulty,
		&card.FSRS.ElapsedDays,
		&card.FSRS.ScheduledDays,
		&card.FSRS.Reps,
		&card.FSRS.Lapses,
		&card.FSRS.State,
		&card.FSRS.LastReview,
		&card.CreatedAt,
		&card.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan flashcard: %w", err)
	}
	return card, nil
}

func nullTimeArg(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
