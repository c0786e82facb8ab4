package app

import (
	"log"
	"sort"
	"sync"
	"time"

	"trivia-match-service/internal/domain"
)

const (
	defaultTargetScore     = 10
	defaultSoloQuestionCap = 20
)

// Match is the in-memory turn state machine for one trivia match: strict
// round-robin turn order, derived scoring, and instant win detection.
//
// A match moves InProgress -> Ended on the end check following a recorded
// answer; nothing leaves Ended. All mutating calls on an ended match (or
// without a pending turn) are silent no-ops rather than errors, since they
// originate from UI races, not programmer error.
type Match struct {
	id       string
	settings domain.MatchSettings
	now      func() time.Time
	logf     func(format string, args ...any)

	mu          sync.RWMutex
	seats       []domain.PlayerSeat
	turns       []domain.Turn
	pending     *domain.Turn
	currentSeat int
	difficulty  domain.Difficulty
	over        bool
	winnerID    *string
	pools       map[domain.Difficulty]*QuestionPool
	subscribers map[chan domain.MatchState]struct{}
}

// NewMatch starts a match: seat order fixed, first turn drawn immediately
// from the pool for the configured difficulty. Returns domain.ErrNoPlayers
// for an empty seat list.
func NewMatch(id string, seats []domain.PlayerSeat, settings domain.MatchSettings, pool *QuestionPool) (*Match, error) {
	return NewMatchWithClock(id, seats, settings, pool, time.Now)
}

// NewMatchWithClock is test-only for deterministic timestamps.
func NewMatchWithClock(id string, seats []domain.PlayerSeat, settings domain.MatchSettings, pool *QuestionPool, now func() time.Time) (*Match, error) {
	if len(seats) == 0 {
		return nil, domain.ErrNoPlayers
	}
	if settings.TargetScore <= 0 {
		settings.TargetScore = defaultTargetScore
	}
	if settings.SoloQuestionCap <= 0 {
		settings.SoloQuestionCap = defaultSoloQuestionCap
	}

	m := &Match{
		id:          id,
		settings:    settings,
		now:         now,
		logf:        log.Printf,
		seats:       append([]domain.PlayerSeat(nil), seats...),
		difficulty:  settings.Difficulty,
		pools:       map[domain.Difficulty]*QuestionPool{settings.Difficulty: pool},
		subscribers: make(map[chan domain.MatchState]struct{}),
	}
	if err := m.beginTurnLocked(); err != nil {
		return nil, err
	}
	return m, nil
}

// ID returns the match identifier.
func (m *Match) ID() string {
	return m.id
}

// RecordAnswer finalizes the pending turn with the given outcome, appends it
// to history, and runs the end check. On game over the turn does not advance;
// otherwise the next seat's turn begins with a fresh question at the
// currently selected difficulty. Without a pending turn this is a no-op.
func (m *Match) RecordAnswer(correct bool) domain.MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.over || m.pending == nil {
		m.logf("match %s: answer ignored, no pending turn", m.id)
		return m.stateLocked()
	}

	turn := *m.pending
	turn.Answered = true
	turn.Correct = correct
	m.turns = append(m.turns, turn)
	m.pending = nil

	if m.endedLocked() {
		m.over = true
		m.winnerID = m.winnerLocked()
		return m.broadcastLocked()
	}

	m.currentSeat = (m.currentSeat + 1) % len(m.seats)
	if err := m.beginTurnLocked(); err != nil {
		m.logf("match %s: draw failed: %v", m.id, err)
	}
	return m.broadcastLocked()
}

// Skip abandons the pending question without recording or scoring anything
// and moves on to the next seat. No-op when there is no pending turn.
func (m *Match) Skip() domain.MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.over || m.pending == nil {
		m.logf("match %s: skip ignored, no pending turn", m.id)
		return m.stateLocked()
	}

	m.pending = nil
	m.currentSeat = (m.currentSeat + 1) % len(m.seats)
	if err := m.beginTurnLocked(); err != nil {
		m.logf("match %s: draw failed: %v", m.id, err)
	}
	return m.broadcastLocked()
}

// HasPool reports whether a pool for the difficulty is already attached.
func (m *Match) HasPool(difficulty domain.Difficulty) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pools[difficulty]
	return ok
}

// AddPool attaches a pool for a difficulty. Existing pools are kept so
// their used tracking survives difficulty switches.
func (m *Match) AddPool(difficulty domain.Difficulty, pool *QuestionPool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[difficulty]; !ok {
		m.pools[difficulty] = pool
	}
}

// ChangeDifficulty redraws the pending turn's question from the new
// difficulty's pool, keeping the same player and turn slot. Allowed only
// while the current turn is unanswered; a finalized turn's difficulty is
// never rewritten. No-op when the pool for the difficulty is missing.
func (m *Match) ChangeDifficulty(difficulty domain.Difficulty) domain.MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.over || m.pending == nil {
		m.logf("match %s: difficulty change ignored, no pending turn", m.id)
		return m.stateLocked()
	}
	pool, ok := m.pools[difficulty]
	if !ok {
		m.logf("match %s: difficulty change ignored, no pool for %q", m.id, difficulty)
		return m.stateLocked()
	}

	q, err := pool.Next()
	if err != nil {
		m.logf("match %s: draw failed: %v", m.id, err)
		return m.stateLocked()
	}
	m.difficulty = difficulty
	m.pending.Question = q
	m.pending.Difficulty = difficulty
	m.pending.Points = m.pointsForLocked(difficulty)
	return m.broadcastLocked()
}

// UndoLast pops the last recorded turn back into the pending slot, solo
// matches only. No-op on empty history or once the match has ended.
func (m *Match) UndoLast() domain.MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.seats) != 1 || m.over || len(m.turns) == 0 {
		m.logf("match %s: undo ignored", m.id)
		return m.stateLocked()
	}

	last := m.turns[len(m.turns)-1]
	m.turns = m.turns[:len(m.turns)-1]
	last.Answered = false
	last.Correct = false
	m.pending = &last
	return m.broadcastLocked()
}

// RenamePlayer updates a seat's display name mid-match. Empty names and
// unknown IDs are ignored.
func (m *Match) RenamePlayer(playerID, name string) domain.MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return m.stateLocked()
	}
	for i := range m.seats {
		if m.seats[i].ID == playerID {
			m.seats[i].DisplayName = name
			return m.broadcastLocked()
		}
	}
	return m.stateLocked()
}

// State returns the current read-only snapshot.
func (m *Match) State() domain.MatchState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stateLocked()
}

// Standings returns the ranked scoreboard.
func (m *Match) Standings() []domain.Standing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.standingsLocked()
}

// Subscribe returns a channel that receives a state snapshot after every
// accepted command. The caller must invoke cancel to avoid leaks.
func (m *Match) Subscribe() (<-chan domain.MatchState, func()) {
	ch := make(chan domain.MatchState, 8)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	initial := m.stateLocked()
	m.mu.Unlock()

	ch <- initial

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the persistable form of the match.
func (m *Match) Snapshot() domain.MatchSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	used := make(map[domain.Difficulty][]string, len(m.pools))
	for difficulty, pool := range m.pools {
		used[difficulty] = pool.UsedIDs()
	}
	var pending *domain.Turn
	if m.pending != nil {
		p := *m.pending
		pending = &p
	}
	return domain.MatchSnapshot{
		MatchID:     m.id,
		Seats:       append([]domain.PlayerSeat(nil), m.seats...),
		Settings:    m.settings,
		Turns:       append([]domain.Turn(nil), m.turns...),
		Pending:     pending,
		CurrentSeat: m.currentSeat,
		UsedIDs:     used,
		Over:        m.over,
		WinnerID:    m.winnerID,
		UpdatedAt:   m.now(),
	}
}

// RestoreMatch rebuilds a match from a snapshot. The caller supplies freshly
// loaded pools keyed by difficulty; their used sets are re-seeded from the
// snapshot so the no-repeat guarantee survives the restore.
func RestoreMatch(snap domain.MatchSnapshot, pools map[domain.Difficulty]*QuestionPool) (*Match, error) {
	if len(snap.Seats) == 0 {
		return nil, domain.ErrNoPlayers
	}

	difficulty := snap.Settings.Difficulty
	if snap.Pending != nil {
		difficulty = snap.Pending.Difficulty
	}
	for d, pool := range pools {
		pool.MarkUsed(snap.UsedIDs[d]...)
	}

	m := &Match{
		id:          snap.MatchID,
		settings:    snap.Settings,
		now:         time.Now,
		logf:        log.Printf,
		seats:       append([]domain.PlayerSeat(nil), snap.Seats...),
		turns:       append([]domain.Turn(nil), snap.Turns...),
		currentSeat: snap.CurrentSeat,
		difficulty:  difficulty,
		over:        snap.Over,
		winnerID:    snap.WinnerID,
		pools:       pools,
		subscribers: make(map[chan domain.MatchState]struct{}),
	}
	if snap.Pending != nil {
		p := *snap.Pending
		m.pending = &p
	} else if !m.over {
		if err := m.beginTurnLocked(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Match) beginTurnLocked() error {
	pool, ok := m.pools[m.difficulty]
	if !ok {
		return domain.ErrPoolExhausted
	}
	q, err := pool.Next()
	if err != nil {
		return err
	}
	m.pending = &domain.Turn{
		PlayerID:   m.seats[m.currentSeat].ID,
		Question:   q,
		Difficulty: m.difficulty,
		Points:     m.pointsForLocked(m.difficulty),
	}
	return nil
}

func (m *Match) pointsForLocked(difficulty domain.Difficulty) int {
	if p, ok := m.settings.Points[difficulty]; ok && p > 0 {
		return p
	}
	return 1
}

func (m *Match) scoresLocked() map[string]int {
	scores := make(map[string]int, len(m.seats))
	for _, seat := range m.seats {
		scores[seat.ID] = 0
	}
	for _, turn := range m.turns {
		if turn.Answered && turn.Correct {
			scores[turn.PlayerID] += turn.Points
		}
	}
	return scores
}

// endedLocked runs the end condition after a recorded answer: first to the
// target score wins the race mid-rotation; solo matches additionally end at
// the question cap.
func (m *Match) endedLocked() bool {
	scores := m.scoresLocked()
	for _, score := range scores {
		if score >= m.settings.TargetScore {
			return true
		}
	}
	if len(m.seats) == 1 && len(m.turns) >= m.settings.SoloQuestionCap {
		return true
	}
	return false
}

// winnerLocked picks the winner once the match has ended: the unique
// maximum scorer at or above the target. A tie at the qualifying max means
// no winner. A solo player is always marked winner when the match ends,
// whatever the score.
func (m *Match) winnerLocked() *string {
	if len(m.seats) == 1 {
		id := m.seats[0].ID
		return &id
	}

	scores := m.scoresLocked()
	max, count, winner := 0, 0, ""
	for _, seat := range m.seats {
		score := scores[seat.ID]
		if score > max {
			max, count, winner = score, 1, seat.ID
		} else if score == max {
			count++
		}
	}
	if max >= m.settings.TargetScore && count == 1 {
		return &winner
	}
	return nil
}

func (m *Match) standingsLocked() []domain.Standing {
	scores := m.scoresLocked()
	standings := make([]domain.Standing, 0, len(m.seats))
	for _, seat := range m.seats {
		standings = append(standings, domain.Standing{
			PlayerID:    seat.ID,
			DisplayName: seat.DisplayName,
			Score:       scores[seat.ID],
			Winner:      m.winnerID != nil && *m.winnerID == seat.ID,
		})
	}
	// score desc, seat order among ties
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	return standings
}

func (m *Match) stateLocked() domain.MatchState {
	scores := m.scoresLocked()
	players := make([]domain.PlayerView, 0, len(m.seats))
	for _, seat := range m.seats {
		players = append(players, domain.PlayerView{
			ID:          seat.ID,
			DisplayName: seat.DisplayName,
			Score:       scores[seat.ID],
		})
	}

	state := domain.MatchState{
		MatchID:     m.id,
		Players:     players,
		Difficulty:  m.difficulty,
		TurnCount:   len(m.turns),
		TargetScore: m.settings.TargetScore,
		Over:        m.over,
		WinnerID:    m.winnerID,
		Standings:   m.standingsLocked(),
		UpdatedAt:   m.now(),
	}
	if m.pending != nil {
		q := m.pending.Question
		state.CurrentPlayerID = m.pending.PlayerID
		state.CurrentQuestion = &q
	}
	return state
}

func (m *Match) broadcastLocked() domain.MatchState {
	state := m.stateLocked()
	for ch := range m.subscribers {
		select {
		case ch <- state:
		default:
			// drop the stale update so a slow receiver never blocks the match
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
	return state
}
