package app

import (
	"math/rand"
	"time"

	"trivia-match-service/internal/domain"
)

const (
	minPromptLen = 5
	minAnswerLen = 1
)

// QuestionPool deals questions for one category/difficulty selector without
// repeats until every question has been served once, then wraps: the used set
// is cleared and the pool deals from the full set again. Used tracking is per
// pool instance, so pools for different difficulties exhaust independently.
//
// The pool is not safe for concurrent use; the owning Match serializes access.
type QuestionPool struct {
	questions []domain.Question
	used      map[string]struct{}
	rnd       *rand.Rand
}

// ValidQuestions drops questions too short to play: prompts of five
// characters or fewer and answers of a single character or fewer are
// discarded at load time rather than surfaced per question.
func ValidQuestions(questions []domain.Question) []domain.Question {
	valid := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if len(q.Prompt) <= minPromptLen || len(q.Answer) <= minAnswerLen {
			continue
		}
		valid = append(valid, q)
	}
	return valid
}

// NewQuestionPool validates the question set and builds a pool over the
// survivors. Returns domain.ErrPoolEmpty when nothing survives filtering.
func NewQuestionPool(questions []domain.Question) (*QuestionPool, error) {
	return NewQuestionPoolWithRand(questions, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewQuestionPoolWithRand is test-only for deterministic draws.
func NewQuestionPoolWithRand(questions []domain.Question, rnd *rand.Rand) (*QuestionPool, error) {
	valid := ValidQuestions(questions)
	if len(valid) == 0 {
		return nil, domain.ErrPoolEmpty
	}
	return &QuestionPool{
		questions: valid,
		used:      make(map[string]struct{}),
		rnd:       rnd,
	}, nil
}

// Next returns a uniformly random not-yet-served question. Once every
// question has been served the used set is cleared first, so a question may
// legally repeat only after a full cycle. Errors only on an empty pool,
// which the constructor rules out.
func (p *QuestionPool) Next() (domain.Question, error) {
	if len(p.questions) == 0 {
		return domain.Question{}, domain.ErrPoolExhausted
	}

	unused := make([]domain.Question, 0, len(p.questions))
	for _, q := range p.questions {
		if _, ok := p.used[q.ID]; !ok {
			unused = append(unused, q)
		}
	}
	if len(unused) == 0 {
		// wrap: start a fresh cycle over the full set
		p.used = make(map[string]struct{})
		unused = p.questions
	}

	pick := unused[p.rnd.Intn(len(unused))]
	p.used[pick.ID] = struct{}{}
	return pick, nil
}

// Reset clears the used set without reloading questions, for reusing the
// pool across matches.
func (p *QuestionPool) Reset() {
	p.used = make(map[string]struct{})
}

// Size reports how many questions survived validation.
func (p *QuestionPool) Size() int {
	return len(p.questions)
}

// UsedCount reports how many questions have been served in the current cycle.
func (p *QuestionPool) UsedCount() int {
	return len(p.used)
}

// UsedIDs returns the served IDs of the current cycle, for snapshots.
func (p *QuestionPool) UsedIDs() []string {
	ids := make([]string, 0, len(p.used))
	for id := range p.used {
		ids = append(ids, id)
	}
	return ids
}

// MarkUsed seeds the used set, for restoring a pool from a snapshot. IDs
// not present in the pool are ignored.
func (p *QuestionPool) MarkUsed(ids ...string) {
	known := make(map[string]struct{}, len(p.questions))
	for _, q := range p.questions {
		known[q.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; ok {
			p.used[id] = struct{}{}
		}
	}
}
