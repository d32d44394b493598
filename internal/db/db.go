package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open connects to the SQLite database and runs schema migrations.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=1", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return conn, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS study_packs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			source_text TEXT NOT NULL DEFAULT '',
			source_kind TEXT NOT NULL DEFAULT 'text',
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS flashcards (
			id TEXT PRIMARY KEY,
			pack_id TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			last_reviewed DATETIME,
			next_review DATETIME,
			ease_factor REAL NOT NULL DEFAULT 2.5,
			repetitions INTEGER NOT NULL DEFAULT 0,
			interval_days INTEGER NOT NULL DEFAULT 0,
			fsrs_due DATETIME,
			fsrs_stability REAL NOT NULL DEFAULT 0,
			fsrs_difficulty REAL NOT NULL DEFAULT 0,
			fsrs_elapsed_days INTEGER NOT NULL DEFAULT 0,
			fsrs_scheduled_days INTEGER NOT NULL DEFAULT 0,
			fsrs_reps INTEGER NOT NULL DEFAULT 0,
			fsrs_lapses INTEGER NOT NULL DEFAULT 0,
			fsrs_state INTEGER NOT NULL DEFAULT 0,
			fsrs_last_review DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(pack_id) REFERENCES study_packs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_questions (
			id TEXT PRIMARY KEY,
			pack_id TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			question TEXT NOT NULL,
			options_json TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			FOREIGN KEY(pack_id) REFERENCES study_packs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS review_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			card_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			interval_days INTEGER NOT NULL,
			ease_factor REAL NOT NULL,
			repetitions INTEGER NOT NULL,
			reviewed_at DATETIME NOT NULL,
			FOREIGN KEY(card_id) REFERENCES flashcards(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_flashcards_pack ON flashcards(pack_id);`,
		`CREATE INDEX IF NOT EXISTS idx_flashcards_next_review ON flashcards(next_review);`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_questions_pack ON quiz_questions(pack_id);`,
		`CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs(card_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}
