package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"trivia-match-service/internal/domain"
)

// QuestionLoader loads question rows from a local SQLite database, the shape
// shipped with the bundled question packs. The schema matches the Postgres
// questions table with distractors stored as a JSON text column.
type QuestionLoader struct {
	db *sql.DB
}

// Open opens the database file and verifies the connection.
func Open(path string) (*QuestionLoader, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &QuestionLoader{db: db}, nil
}

func (l *QuestionLoader) Close() error {
	return l.db.Close()
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error) {
	query := `SELECT id, prompt, answer, distractors, difficulty, category, reference
		FROM questions WHERE category=?`
	args := []interface{}{category}
	if difficulty != domain.DifficultyAny {
		query += ` AND difficulty=?`
		args = append(args, string(difficulty))
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q              domain.Question
			rawDistractors string
			diff           string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Answer, &rawDistractors, &diff, &q.Category, &q.Reference); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if rawDistractors != "" {
			if err := json.Unmarshal([]byte(rawDistractors), &q.Distractors); err != nil {
				return nil, fmt.Errorf("unmarshal distractors: %w", err)
			}
		}
		q.Difficulty = domain.Difficulty(diff)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrCategoryNotFound
	}
	return questions, nil
}
