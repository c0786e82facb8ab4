package app

import (
	"context"

	"github.com/google/uuid"

	"trivia-match-service/internal/domain"
)

// MatchStore abstracts how live matches and their snapshots are kept
// (in-memory, Redis, etc).
type MatchStore interface {
	Put(match *Match)
	Get(matchID string) (*Match, bool)
	Delete(matchID string)
	// SaveSnapshot persists the snapshot best-effort; LoadSnapshot recovers
	// one after a restart. Stores without a backing medium return false.
	SaveSnapshot(ctx context.Context, snap domain.MatchSnapshot)
	LoadSnapshot(ctx context.Context, matchID string) (domain.MatchSnapshot, bool)
}

// QuestionRepository loads question content (from cache/backing store) for a
// category and difficulty selector.
type QuestionRepository interface {
	GetQuestions(ctx context.Context, category string, difficulty domain.Difficulty) ([]domain.Question, error)
}

// MatchSpec is the input to starting a match.
type MatchSpec struct {
	MatchID  string
	Seats    []domain.PlayerSeat
	Settings domain.MatchSettings
}

// MatchService contains the trivia match use cases. All IO (question
// loading, snapshot persistence) happens here; the Match itself stays a
// synchronous in-memory state machine.
type MatchService struct {
	matches   MatchStore
	questions QuestionRepository
	defaults  domain.MatchSettings
}

func NewMatchService(store MatchStore, questions QuestionRepository) *MatchService {
	return &MatchService{matches: store, questions: questions}
}

// WithMatchDefaults fills unset per-match settings (target score, solo cap,
// point weighting) from deployment config.
func (s *MatchService) WithMatchDefaults(defaults domain.MatchSettings) *MatchService {
	s.defaults = defaults
	return s
}

// Start validates the setup, builds the question pool for the requested
// category and difficulty, and begins the match. A match ID is generated
// when the caller does not supply one.
func (s *MatchService) Start(ctx context.Context, spec MatchSpec) (domain.MatchState, error) {
	if len(spec.Seats) == 0 {
		return domain.MatchState{}, domain.ErrNoPlayers
	}

	if spec.Settings.TargetScore <= 0 {
		spec.Settings.TargetScore = s.defaults.TargetScore
	}
	if spec.Settings.SoloQuestionCap <= 0 {
		spec.Settings.SoloQuestionCap = s.defaults.SoloQuestionCap
	}
	if spec.Settings.Points == nil {
		spec.Settings.Points = s.defaults.Points
	}

	pool, err := s.buildPool(ctx, spec.Settings.Category, spec.Settings.Difficulty)
	if err != nil {
		return domain.MatchState{}, err
	}

	matchID := spec.MatchID
	if matchID == "" {
		matchID = uuid.NewString()
	}

	match, err := NewMatch(matchID, spec.Seats, spec.Settings, pool)
	if err != nil {
		return domain.MatchState{}, err
	}
	s.matches.Put(match)
	s.matches.SaveSnapshot(ctx, match.Snapshot())
	return match.State(), nil
}

// Answer records the pending turn's outcome for the match.
func (s *MatchService) Answer(ctx context.Context, matchID string, correct bool) (domain.MatchState, error) {
	match, err := s.match(ctx, matchID)
	if err != nil {
		return domain.MatchState{}, err
	}
	state := match.RecordAnswer(correct)
	s.matches.SaveSnapshot(ctx, match.Snapshot())
	return state, nil
}

// Skip advances the match past the pending question without scoring it.
func (s *MatchService) Skip(ctx context.Context, matchID string) (domain.MatchState, error) {
	match, err := s.match(ctx, matchID)
	if err != nil {
		return domain.MatchState{}, err
	}
	state := match.Skip()
	s.matches.SaveSnapshot(ctx, match.Snapshot())
	return state, nil
}

// ChangeDifficulty switches the pending turn to a question from another
// difficulty's pool, loading that pool on first use.
func (s *MatchService) ChangeDifficulty(ctx context.Context, matchID string, difficulty domain.Difficulty) (domain.MatchState, error) {
	match, err := s.match(ctx, matchID)
	if err != nil {
		return domain.MatchState{}, err
	}
	if !match.HasPool(difficulty) {
		snap := match.Snapshot()
		pool, err := s.buildPool(ctx, snap.Settings.Category, difficulty)
		if err != nil {
			return domain.MatchState{}, err
		}
		match.AddPool(difficulty, pool)
	}
	state := match.ChangeDifficulty(difficulty)
	s.matches.SaveSnapshot(ctx, match.Snapshot())
	return state, nil
}

// Undo pops the last recorded turn back into play (solo matches only).
func (s *MatchService) Undo(ctx context.Context, matchID string) (domain.MatchState, error) {
	match, err := s.match(ctx, matchID)
	if err != nil {
		return domain.MatchState{}, err
	}
	state := match.UndoLast()
	s.matches.SaveSnapshot(ctx, match.Snapshot())
	return state, nil
}

// RenamePlayer updates a seat's display name mid-match.
func (s *MatchService) RenamePlayer(ctx context.Context, matchID, playerID, name string) (domain.MatchState, error) {
	match, err := s.match(ctx, matchID)
	if err != nil {
		return domain.MatchState{}, err
	}
	state := match.RenamePlayer(playerID, name)
	s.matches.SaveSnapshot(ctx, match.Snapshot())
	return state, nil
}

// State returns the current snapshot without mutating anything.
func (s *MatchService) State(ctx context.Context, matchID string) (domain.MatchState, error) {
	match, err := s.match(ctx, matchID)
	if err != nil {
		return domain.MatchState{}, err
	}
	return match.State(), nil
}

// Standings returns the ranked scoreboard.
func (s *MatchService) Standings(ctx context.Context, matchID string) ([]domain.Standing, error) {
	match, err := s.match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return match.Standings(), nil
}

// Subscribe returns a channel that receives match state updates. The caller
// must invoke the returned cancel function to avoid leaks.
func (s *MatchService) Subscribe(ctx context.Context, matchID string) (<-chan domain.MatchState, func(), error) {
	match, err := s.match(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := match.Subscribe()
	return ch, cancel, nil
}

// Abandon drops the match from the store; no result is recorded.
func (s *MatchService) Abandon(_ context.Context, matchID string) {
	s.matches.Delete(matchID)
}

// match resolves a live match, falling back to a persisted snapshot so a
// match survives a process restart. The restored pools are re-seeded with
// the snapshot's used IDs.
func (s *MatchService) match(ctx context.Context, matchID string) (*Match, error) {
	if match, ok := s.matches.Get(matchID); ok {
		return match, nil
	}

	snap, ok := s.matches.LoadSnapshot(ctx, matchID)
	if !ok {
		return nil, domain.ErrMatchNotFound
	}

	pools := make(map[domain.Difficulty]*QuestionPool, len(snap.UsedIDs))
	for difficulty := range snap.UsedIDs {
		pool, err := s.buildPool(ctx, snap.Settings.Category, difficulty)
		if err != nil {
			return nil, err
		}
		pools[difficulty] = pool
	}
	if _, ok := pools[snap.Settings.Difficulty]; !ok {
		pool, err := s.buildPool(ctx, snap.Settings.Category, snap.Settings.Difficulty)
		if err != nil {
			return nil, err
		}
		pools[snap.Settings.Difficulty] = pool
	}

	match, err := RestoreMatch(snap, pools)
	if err != nil {
		return nil, err
	}
	s.matches.Put(match)
	return match, nil
}

func (s *MatchService) buildPool(ctx context.Context, category string, difficulty domain.Difficulty) (*QuestionPool, error) {
	questions, err := s.questions.GetQuestions(ctx, category, difficulty)
	if err != nil {
		return nil, err
	}
	return NewQuestionPool(questions)
}
