package game

import (
	"sort"
	"sync"
	"time"

	"quizer-server/internal/domain"
)

// Room is one isolated game session. All mutable state is guarded by mu;
// every engine operation locks the room for its full duration, so handlers
// are atomic with respect to room state while independent rooms stay
// concurrent.
type Room struct {
	mu sync.Mutex

	code      string
	hostID    string
	quiz      domain.Quiz
	createdAt time.Time

	state   domain.RoomState
	current int

	// players is in join order, which doubles as the leaderboard tie-break.
	// Entries for disconnected players linger until their grace timer fires
	// so a rejoin under the same name can reclaim the score.
	players    []*domain.Player
	spectators map[string]struct{}

	// answers is append-only, indexed by question; at most one record per
	// player per question.
	answers map[int][]domain.AnswerRecord

	// buzzed holds the names of players whose buzzer is locked for the
	// current question.
	buzzed map[string]struct{}

	pruneTimers map[string]*time.Timer
	archived    bool
}

func newRoom(code, hostID string, quiz domain.Quiz, now time.Time) *Room {
	return &Room{
		code:        code,
		hostID:      hostID,
		quiz:        quiz,
		createdAt:   now,
		state:       domain.StateLobby,
		spectators:  make(map[string]struct{}),
		answers:     make(map[int][]domain.AnswerRecord),
		buzzed:      make(map[string]struct{}),
		pruneTimers: make(map[string]*time.Timer),
	}
}

// NewRoomForTest builds an empty lobby room; registry tests need a Room
// value without going through the engine.
func NewRoomForTest(code, hostID string) *Room {
	return newRoom(code, hostID, domain.Quiz{}, time.Now())
}

// Code returns the room's join code.
func (r *Room) Code() string { return r.code }

// HostID returns the connection id of the room's host. It is set once at
// creation and never rebound, so it is safe to read without the lock.
func (r *Room) HostID() string { return r.hostID }

func (r *Room) findByConnLocked(connID string) *domain.Player {
	for _, p := range r.players {
		if p.ConnectionID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) findByNameLocked(name string) *domain.Player {
	for _, p := range r.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// rosterLocked snapshots the connected players in join order.
func (r *Room) rosterLocked() []domain.Player {
	out := make([]domain.Player, 0, len(r.players))
	for _, p := range r.players {
		if p.Connected {
			out = append(out, *p)
		}
	}
	return out
}

// standingsLocked snapshots the connected players sorted by score
// descending. The sort is stable so ties keep join order.
func (r *Room) standingsLocked() []domain.Player {
	out := r.rosterLocked()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// recipientsLocked lists every connection the room broadcasts to: the host,
// connected players, and spectators.
func (r *Room) recipientsLocked() []string {
	ids := make([]string, 0, len(r.players)+len(r.spectators)+1)
	ids = append(ids, r.hostID)
	for _, p := range r.players {
		if p.Connected {
			ids = append(ids, p.ConnectionID)
		}
	}
	for id := range r.spectators {
		ids = append(ids, id)
	}
	return ids
}

// audienceLocked lists every broadcast recipient except the host:
// connected players and spectators. Question broadcasts split on it so
// only the host's copy carries the canonical answer.
func (r *Room) audienceLocked() []string {
	ids := make([]string, 0, len(r.players)+len(r.spectators))
	for _, p := range r.players {
		if p.Connected {
			ids = append(ids, p.ConnectionID)
		}
	}
	for id := range r.spectators {
		ids = append(ids, id)
	}
	return ids
}

// removePlayerLocked drops a roster entry and cancels its prune timer.
func (r *Room) removePlayerLocked(p *domain.Player) {
	for i, q := range r.players {
		if q == p {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	if t, ok := r.pruneTimers[p.Name]; ok {
		t.Stop()
		delete(r.pruneTimers, p.Name)
	}
	delete(r.buzzed, p.Name)
}

// resetQuestionLocked clears per-question transient state when the game
// moves to a new question.
func (r *Room) resetQuestionLocked() {
	r.buzzed = make(map[string]struct{})
	for _, p := range r.players {
		p.HasAnswered = false
		p.Correct = false
		p.ResponseTime = 0
		p.BonusPoints = 0
	}
}

// stopTimersLocked cancels all pending prune timers; called on teardown.
func (r *Room) stopTimersLocked() {
	for name, t := range r.pruneTimers {
		t.Stop()
		delete(r.pruneTimers, name)
	}
}

// resultLocked builds the archive record for the current standings.
func (r *Room) resultLocked(now time.Time) domain.GameResult {
	standings := r.standingsLocked()
	rows := make([]domain.Standing, 0, len(standings))
	for i, p := range standings {
		rows = append(rows, domain.Standing{
			Rank:   i + 1,
			Name:   p.Name,
			Avatar: p.Avatar,
			Score:  p.Score,
		})
	}
	return domain.GameResult{
		RoomCode:   r.code,
		QuizID:     r.quiz.ID,
		QuizTitle:  r.quiz.Title,
		FinishedAt: now,
		Standings:  rows,
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
