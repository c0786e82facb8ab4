package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-match-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store (file, SQLite,
// Postgres, ...).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error)
}

// QuestionRepository caches question sets with TTL to avoid repeated hits on
// the backing store.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error) {
	key := cacheKey(category, difficulty)
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadQuestions(ctx, category, difficulty)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedQuestions{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func cacheKey(category string, difficulty domain.Difficulty) string {
	return category + "|" + string(difficulty)
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a simple loader backed by an in-memory table
// (useful for tests/demos).
type StaticQuestionLoader struct {
	questions map[string][]domain.Question
}

func NewStaticQuestionLoader(questions map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error) {
	all, ok := l.questions[category]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	if difficulty == domain.DifficultyAny {
		return all, nil
	}
	filtered := make([]domain.Question, 0, len(all))
	for _, q := range all {
		if q.Difficulty == difficulty {
			filtered = append(filtered, q)
		}
	}
	return filtered, nil
}
