package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"trivia-match-service/internal/domain"
)

// QuestionLoader serves questions from a JSON file holding a flat array of
// question objects. The file is parsed once on first use and kept in memory
// for the life of the process.
type QuestionLoader struct {
	path string

	once      sync.Once
	parseErr  error
	questions []domain.Question
}

func NewQuestionLoader(path string) *QuestionLoader {
	return &QuestionLoader{path: path}
}

func (l *QuestionLoader) LoadQuestions(_ context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error) {
	l.once.Do(l.parse)
	if l.parseErr != nil {
		return nil, l.parseErr
	}

	var questions []domain.Question
	for _, q := range l.questions {
		if q.Category != category {
			continue
		}
		if difficulty != domain.DifficultyAny && q.Difficulty != difficulty {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, domain.ErrCategoryNotFound
	}
	return questions, nil
}

func (l *QuestionLoader) parse() {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		l.parseErr = fmt.Errorf("%w: %v", domain.ErrQuestionSource, err)
		return
	}
	if err := json.Unmarshal(raw, &l.questions); err != nil {
		l.parseErr = fmt.Errorf("%w: parse %s: %v", domain.ErrQuestionSource, l.path, err)
	}
}
