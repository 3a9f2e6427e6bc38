package postgres

import (
	"context"
	"errors"

	"bleepy-challenge-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads the question bank table through a pgx pool.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var (
		q          domain.Question
		difficulty string
	)
	err := l.pool.QueryRow(ctx,
		`SELECT id, category, difficulty, correct_answer FROM questions WHERE id = $1`,
		questionID,
	).Scan(&q.ID, &q.Category, &difficulty, &q.CorrectAnswer)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, wrap("load question", err)
	}
	q.Difficulty = domain.Difficulty(difficulty)
	return q, nil
}

// An empty filter array matches every row.
const sampleQuestionsSQL = `SELECT id FROM questions
WHERE (coalesce(cardinality($1::text[]), 0) = 0 OR category = ANY($1::text[]))
  AND (coalesce(cardinality($2::text[]), 0) = 0 OR difficulty = ANY($2::text[]))
ORDER BY random()
LIMIT $3`

func (l *QuestionLoader) SampleQuestions(ctx context.Context, categories []string, difficulties []domain.Difficulty, count int) ([]string, error) {
	rows, err := l.pool.Query(ctx, sampleQuestionsSQL,
		nonNil(categories), nonNil(difficultyStrings(difficulties)), count)
	if err != nil {
		return nil, wrap("sample questions", err)
	}
	defer rows.Close()

	ids := make([]string, 0, count)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("scan question id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("sample questions", err)
	}
	return ids, nil
}
