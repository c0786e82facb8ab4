package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"trivia-match-service/internal/app"
	"trivia-match-service/internal/domain"
)

type WSHandler struct {
	service  *app.MatchService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.MatchService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Players     []domain.PlayerSeat       `json:"players"`
	Category    string                    `json:"category"`
	Difficulty  domain.Difficulty         `json:"difficulty"`
	TargetScore int                       `json:"targetScore"`
	Points      map[domain.Difficulty]int `json:"points"`
}

type answerPayload struct {
	Correct bool `json:"correct"`
}

type difficultyPayload struct {
	Difficulty domain.Difficulty `json:"difficulty"`
}

type renamePayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the match
// use cases. A connection either resumes an existing match (matchId query
// param) or starts a new one with its first message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	matchID := r.URL.Query().Get("matchId")
	var (
		updatesDone chan struct{}
		cancelSub   func()
	)

	subscribe := func(id string) bool {
		updates, cancel, err := h.service.Subscribe(r.Context(), id)
		if err != nil {
			send <- errMsg(err)
			return false
		}
		if cancelSub != nil {
			cancelSub()
		}
		cancelSub = cancel
		updatesDone = make(chan struct{})
		go func() {
			defer close(updatesDone)
			for {
				select {
				case update, ok := <-updates:
					if !ok {
						return
					}
					select {
					case send <- outboundMessage[any]{Type: "state", Payload: update}:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
		return true
	}

	if matchID != "" {
		state, err := h.service.State(r.Context(), matchID)
		if err != nil {
			send <- errMsg(err)
		} else {
			send <- outboundMessage[any]{Type: "state", Payload: state}
			subscribe(matchID)
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg(errInvalidPayload)
				continue
			}
			state, err := h.service.Start(r.Context(), app.MatchSpec{
				Seats: payload.Players,
				Settings: domain.MatchSettings{
					Category:    payload.Category,
					Difficulty:  payload.Difficulty,
					TargetScore: payload.TargetScore,
					Points:      payload.Points,
				},
			})
			if err != nil {
				send <- errMsg(err)
				continue
			}
			matchID = state.MatchID
			send <- outboundMessage[any]{Type: "state", Payload: state}
			subscribe(matchID)

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg(errInvalidPayload)
				continue
			}
			h.apply(send, func() (domain.MatchState, error) {
				return h.service.Answer(r.Context(), matchID, payload.Correct)
			})

		case "skip":
			h.apply(send, func() (domain.MatchState, error) {
				return h.service.Skip(r.Context(), matchID)
			})

		case "difficulty":
			var payload difficultyPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg(errInvalidPayload)
				continue
			}
			h.apply(send, func() (domain.MatchState, error) {
				return h.service.ChangeDifficulty(r.Context(), matchID, payload.Difficulty)
			})

		case "undo":
			h.apply(send, func() (domain.MatchState, error) {
				return h.service.Undo(r.Context(), matchID)
			})

		case "rename":
			var payload renamePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errMsg(errInvalidPayload)
				continue
			}
			h.apply(send, func() (domain.MatchState, error) {
				return h.service.RenamePlayer(r.Context(), matchID, payload.PlayerID, payload.Name)
			})

		default:
			send <- errMsg(errUnsupportedType)
		}
	}

	close(closeSignals)
	if updatesDone != nil {
		<-updatesDone
	}
	if cancelSub != nil {
		cancelSub()
	}
	close(send)
	<-writerDone
}

// apply runs a match command and reports its fresh state; defensive no-ops
// inside the match still produce a state reply so clients stay in sync.
func (h *WSHandler) apply(send chan<- outboundMessage[any], op func() (domain.MatchState, error)) {
	state, err := op()
	if err != nil {
		send <- errMsg(err)
		return
	}
	send <- outboundMessage[any]{Type: "state", Payload: state}
}

var (
	errInvalidPayload  = &wsError{"invalid payload"}
	errUnsupportedType = &wsError{"unsupported message type"}
)

type wsError struct{ msg string }

func (e *wsError) Error() string { return e.msg }

func errMsg(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
