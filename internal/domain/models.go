package domain

import "time"

// Difficulty selects a question sub-pool. The set is open; the seeded
// content uses easy and hard, with medium reserved for imported packs.
type Difficulty string

const (
	DifficultyAny    Difficulty = ""
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is one trivia item. Immutable once loaded.
type Question struct {
	ID          string     `json:"id"`
	Prompt      string     `json:"question"`
	Answer      string     `json:"answer"`
	Distractors []string   `json:"wrongAnswers,omitempty"`
	Difficulty  Difficulty `json:"difficulty,omitempty"`
	Category    string     `json:"category,omitempty"`
	Reference   string     `json:"reference,omitempty"`
}

// PlayerSeat is the setup-time identity of a player or team.
type PlayerSeat struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Turn is the atomic unit of match history. A turn is created with its
// question when the player's go begins and finalized exactly once when the
// answer outcome is recorded.
type Turn struct {
	PlayerID   string     `json:"playerId"`
	Question   Question   `json:"question"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points"`
	Answered   bool       `json:"answered"`
	Correct    bool       `json:"correct"`
}

// Standing is one row of the ranked scoreboard.
type Standing struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Winner      bool   `json:"winner"`
}

// PlayerView is a player with their derived score.
type PlayerView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// MatchState is the read-only snapshot pushed to clients after every
// accepted command.
type MatchState struct {
	MatchID         string       `json:"matchId"`
	Players         []PlayerView `json:"players"`
	CurrentPlayerID string       `json:"currentPlayerId,omitempty"`
	CurrentQuestion *Question    `json:"currentQuestion,omitempty"`
	Difficulty      Difficulty   `json:"difficulty"`
	TurnCount       int          `json:"turnCount"`
	TargetScore     int          `json:"targetScore"`
	Over            bool         `json:"over"`
	WinnerID        *string      `json:"winnerId,omitempty"`
	Standings       []Standing   `json:"standings"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// MatchSettings are the knobs fixed at start time. An empty Points map
// means flat scoring: one point per correct answer at any difficulty.
type MatchSettings struct {
	Category        string             `json:"category"`
	Difficulty      Difficulty         `json:"difficulty"`
	TargetScore     int                `json:"targetScore"`
	SoloQuestionCap int                `json:"soloQuestionCap"`
	Points          map[Difficulty]int `json:"points,omitempty"`
}

// MatchSnapshot is the persisted form of a match: everything needed to
// restore it after a reconnect or process restart. Last write wins.
type MatchSnapshot struct {
	MatchID     string                  `json:"matchId"`
	Seats       []PlayerSeat            `json:"seats"`
	Settings    MatchSettings           `json:"settings"`
	Turns       []Turn                  `json:"turns"`
	Pending     *Turn                   `json:"pending,omitempty"`
	CurrentSeat int                     `json:"currentSeat"`
	UsedIDs     map[Difficulty][]string `json:"usedIds,omitempty"`
	Over        bool                    `json:"over"`
	WinnerID    *string                 `json:"winnerId,omitempty"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}
