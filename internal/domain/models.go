package domain

import "time"

// RoomState is the phase a game room is in.
type RoomState string

const (
	StateLobby    RoomState = "lobby"
	StateQuestion RoomState = "question"
	StateResults  RoomState = "results"
	StateFinal    RoomState = "final"
)

// QuestionType mirrors the authoring schema's type tags.
type QuestionType string

const (
	QuestionMultiple  QuestionType = "multiple"
	QuestionTrueFalse QuestionType = "truefalse"
	QuestionBuzzer    QuestionType = "buzzer"
)

// Question is one quiz question as authored by the host client.
// CorrectAnswer is an index into Answers (0/1 for true/false questions).
type Question struct {
	Text          string       `json:"question"`
	Type          QuestionType `json:"type"`
	Answers       []string     `json:"answers,omitempty"`
	CorrectAnswer int          `json:"correctAnswer"`
	Points        int          `json:"points"`
	TimeLimit     int          `json:"timeLimit,omitempty"`
	Image         string       `json:"image,omitempty"`
}

// Judgeable reports whether the server can score a submission for this
// question by index equality. Buzzer rounds are scored by host discretion;
// richer authoring types have no server-side judging path at all.
func (q Question) Judgeable() bool {
	return q.Type == QuestionMultiple || q.Type == QuestionTrueFalse
}

// QuestionView is the question as broadcast to the room: identical to
// Question minus the canonical answer.
type QuestionView struct {
	Text      string       `json:"question"`
	Type      QuestionType `json:"type"`
	Answers   []string     `json:"answers,omitempty"`
	Points    int          `json:"points"`
	TimeLimit int          `json:"timeLimit,omitempty"`
	Image     string       `json:"image,omitempty"`
}

// View strips the canonical answer for broadcasting.
func (q Question) View() QuestionView {
	return QuestionView{
		Text:      q.Text,
		Type:      q.Type,
		Answers:   q.Answers,
		Points:    q.Points,
		TimeLimit: q.TimeLimit,
		Image:     q.Image,
	}
}

// Quiz is the immutable snapshot a host supplies when creating a room.
type Quiz struct {
	ID                           string     `json:"id"`
	Title                        string     `json:"title"`
	Questions                    []Question `json:"questions"`
	ShowLeaderboardAfterQuestion bool       `json:"showLeaderboardAfterQuestion,omitempty"`
}

// Player is a roster entry in a room. ConnectionID is rebound on
// reconnection; Name is the reconnection key within a room.
type Player struct {
	ConnectionID string `json:"id"`
	Name         string `json:"name"`
	Avatar       string `json:"avatar"`
	Score        int    `json:"score"`

	// Per-question transient state, never serialized.
	Connected    bool    `json:"-"`
	HasAnswered  bool    `json:"-"`
	Correct      bool    `json:"-"`
	ResponseTime float64 `json:"-"`
	BonusPoints  int     `json:"-"`
}

// AnswerRecord is the append-only log entry for one player's answer to one
// question. At most one record exists per player per question.
type AnswerRecord struct {
	PlayerID     string
	PlayerName   string
	Correct      bool
	ResponseTime float64
	Timestamp    time.Time
}

// Standing is one row of a final scoreboard.
type Standing struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Score  int    `json:"score"`
}

// GameResult is the write-only archive record emitted when a game finishes.
type GameResult struct {
	RoomCode   string
	QuizID     string
	QuizTitle  string
	FinishedAt time.Time
	Standings  []Standing
}
