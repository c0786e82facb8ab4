package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-match-service/internal/domain"
)

// QuestionLoader loads question rows from Postgres. Distractors are stored
// as a jsonb array per row.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error) {
	query := `SELECT id, prompt, answer, distractors, difficulty, category, reference
		FROM questions WHERE category=$1`
	args := []interface{}{category}
	if difficulty != domain.DifficultyAny {
		query += ` AND difficulty=$2`
		args = append(args, string(difficulty))
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, domain.ErrCategoryNotFound
	}
	return questions, nil
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	var questions []domain.Question
	for rows.Next() {
		var (
			q              domain.Question
			rawDistractors []byte
			difficulty     string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Answer, &rawDistractors, &difficulty, &q.Category, &q.Reference); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if len(rawDistractors) > 0 {
			if err := json.Unmarshal(rawDistractors, &q.Distractors); err != nil {
				return nil, fmt.Errorf("unmarshal distractors: %w", err)
			}
		}
		q.Difficulty = domain.Difficulty(difficulty)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return questions, nil
}
