package learning

import (
	"context"
	"database/sql"
	"time"

	"tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/models"

	"github.com/lib/pq"
)

// Store durably records the learning log. The in-memory state of Service is
// authoritative; Store failures never roll it back.
type Store interface {
	SaveInteraction(ctx context.Context, in models.LearningInteraction) error
	SaveGap(ctx context.Context, gap models.KnowledgeGap) error
	DeleteInteractionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const (
	insertInteractionQuery = `INSERT INTO learning_interactions
		(id, question, answer, sources, confidence, feedback, correct_answer, category, user_id, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	upsertGapQuery = `INSERT INTO knowledge_gaps
		(id, category, question, frequency, current_confidence, suggested_sources, priority, created_at, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET frequency = EXCLUDED.frequency,
			current_confidence = EXCLUDED.current_confidence, priority = EXCLUDED.priority,
			last_seen = EXCLUDED.last_seen`

	deleteInteractionsQuery = `DELETE FROM learning_interactions WHERE created_at < $1`

	selectGapsQuery = `SELECT id, category, question, frequency, current_confidence, suggested_sources, priority, created_at, last_seen
		FROM knowledge_gaps ORDER BY created_at`
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveInteraction(ctx context.Context, in models.LearningInteraction) error {
	_, err := s.db.ExecContext(ctx, insertInteractionQuery,
		in.ID,
		in.Question,
		in.Answer,
		pq.Array(in.Sources),
		in.Confidence,
		string(in.Feedback),
		nullString(in.Correction),
		in.Metadata.Category,
		nullString(in.Metadata.UserID),
		nullString(in.Metadata.SessionID),
		in.Timestamp,
	)
	if err != nil {
		return errors.NewPersistenceFailureError("save interaction", err)
	}
	return nil
}

func (s *PostgresStore) SaveGap(ctx context.Context, gap models.KnowledgeGap) error {
	_, err := s.db.ExecContext(ctx, upsertGapQuery,
		gap.ID,
		gap.Category,
		gap.Question,
		gap.Frequency,
		gap.CurrentConfidence,
		pq.Array(gap.SuggestedSources),
		string(gap.Priority),
		gap.CreatedAt,
		gap.LastSeen,
	)
	if err != nil {
		return errors.NewPersistenceFailureError("save knowledge gap", err)
	}
	return nil
}

func (s *PostgresStore) DeleteInteractionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteInteractionsQuery, cutoff)
	if err != nil {
		return 0, errors.NewPersistenceFailureError("delete interactions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewPersistenceFailureError("delete interactions", err)
	}
	return n, nil
}

// LoadGaps returns every persisted gap, oldest first.
func (s *PostgresStore) LoadGaps(ctx context.Context) ([]models.KnowledgeGap, error) {
	rows, err := s.db.QueryContext(ctx, selectGapsQuery)
	if err != nil {
		return nil, errors.NewPersistenceFailureError("load knowledge gaps", err)
	}
	defer rows.Close()

	var gaps []models.KnowledgeGap
	for rows.Next() {
		var (
			g        models.KnowledgeGap
			priority string
		)
		if err := rows.Scan(&g.ID, &g.Category, &g.Question, &g.Frequency, &g.CurrentConfidence,
			pq.Array(&g.SuggestedSources), &priority, &g.CreatedAt, &g.LastSeen); err != nil {
			return nil, errors.NewPersistenceFailureError("load knowledge gaps", err)
		}
		g.Priority = models.GapPriority(priority)
		gaps = append(gaps, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistenceFailureError("load knowledge gaps", err)
	}
	return gaps, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
