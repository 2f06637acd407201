package missed

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/quizbot/internal/question"
)

// PGStore keeps missed ids in the missed_questions table.
type PGStore struct {
	db *sqlx.DB
}

// NewPGStore returns a postgres-backed store.
func NewPGStore(db *sqlx.DB) *PGStore {
	return &PGStore{db: db}
}

type missedRow struct {
	Genre      string `db:"genre"`
	QuestionID string `db:"question_id"`
}

// Load returns the user's missed ids grouped by genre, in saved order.
func (s *PGStore) Load(ctx context.Context, userID string) (map[string][]question.ID, error) {
	var rows []missedRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT genre, question_id
		FROM missed_questions
		WHERE user_id = $1
		ORDER BY genre, position`, userID)
	if err != nil {
		return nil, fmt.Errorf("select missed: %w", err)
	}
	out := make(map[string][]question.ID)
	for _, r := range rows {
		out[r.Genre] = append(out[r.Genre], question.ID(r.QuestionID))
	}
	return out, nil
}

// Save replaces the user's ids for genre in one transaction.
func (s *PGStore) Save(ctx context.Context, userID, genre string, ids []question.ID) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM missed_questions WHERE user_id = $1 AND genre = $2`, userID, genre); err != nil {
		return fmt.Errorf("delete missed: %w", err)
	}
	for i, id := range ids {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO missed_questions (user_id, genre, question_id, position)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, genre, question_id) DO NOTHING`,
			userID, genre, string(id), i); err != nil {
			return fmt.Errorf("insert missed: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
