package knowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PGStore keeps the log in the knowledge table.
type PGStore struct {
	db *sqlx.DB
}

// NewPGStore returns a postgres-backed knowledge log.
func NewPGStore(db *sqlx.DB) *PGStore {
	return &PGStore{db: db}
}

type knowledgeRow struct {
	Question  string    `db:"question"`
	Response  string    `db:"response"`
	User      string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Append inserts r. An unparsable timestamp falls back to now.
func (s *PGStore) Append(ctx context.Context, r Record) error {
	at, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		at = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge (question, response, user_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		r.Question, r.Response, r.User, at)
	if err != nil {
		return fmt.Errorf("insert knowledge: %w", err)
	}
	return nil
}

// All returns every record oldest first.
func (s *PGStore) All(ctx context.Context) ([]Record, error) {
	var rows []knowledgeRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT question, response, user_id, created_at FROM knowledge ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select knowledge: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{
			Question:  r.Question,
			Response:  r.Response,
			User:      r.User,
			Timestamp: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}
