package domain

import "errors"

var (
	// ErrMatchNotFound is returned when a match ID has no live or persisted state.
	ErrMatchNotFound = errors.New("match not found")
	// ErrNoPlayers is returned when a match is started with an empty seat list.
	ErrNoPlayers = errors.New("match requires at least one player")
	// ErrPoolEmpty indicates the question source had nothing usable for the
	// requested category and difficulty after validation filtering.
	ErrPoolEmpty = errors.New("question pool empty after validation")
	// ErrPoolExhausted indicates a draw from a pool with no questions at all.
	ErrPoolExhausted = errors.New("question pool exhausted")
	// ErrCategoryNotFound indicates the question source knows no such category.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrQuestionSource wraps failures reading the backing question store.
	ErrQuestionSource = errors.New("question source unavailable")
)
