package game

import "quizer-server/internal/domain"

// Envelope is the framed message every connection sends and receives.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Outbound message names.
const (
	MsgRoomCreated         = "room-created"
	MsgRoomState           = "room-state"
	MsgPlayerJoined        = "player-joined"
	MsgPlayerLeft          = "player-left"
	MsgGameStarted         = "game-started"
	MsgAnswerResult        = "answer-result"
	MsgPlayerAnswered      = "player-answered"
	MsgBuzzerPressed       = "buzzer-pressed"
	MsgBuzzerPointsAwarded = "buzzer-points-awarded"
	MsgBuzzerUnlocked      = "buzzer-unlocked"
	MsgPlayerScoreUpdated  = "player-score-updated"
	MsgLeaderboardUpdate   = "leaderboard-update"
	MsgShowResults         = "show-results"
	MsgNextQuestion        = "next-question"
	MsgGameOver            = "game-over"
	MsgGameEnded           = "game-ended"
	MsgGameRestarted       = "game-restarted"
	MsgHostDisconnected    = "host-disconnected"
	MsgError               = "error"
)

type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
}

type PlayerJoinedPayload struct {
	Player  domain.Player   `json:"player"`
	Players []domain.Player `json:"players"`
}

type RoomStatePayload struct {
	State           domain.RoomState     `json:"state"`
	Players         []domain.Player      `json:"players"`
	CurrentQuestion int                  `json:"currentQuestion"`
	Reconnected     bool                 `json:"reconnected,omitempty"`
	LateJoin        bool                 `json:"lateJoin,omitempty"`
	Question        *domain.QuestionView `json:"question,omitempty"`
}

type QuestionPayload struct {
	Question       domain.QuestionView `json:"question"`
	QuestionIndex  int                 `json:"questionIndex"`
	TotalQuestions int                 `json:"totalQuestions"`
}

// HostQuestionPayload is the host's copy of a question broadcast; unlike
// QuestionPayload it carries the canonical answer.
type HostQuestionPayload struct {
	Question       domain.Question `json:"question"`
	QuestionIndex  int             `json:"questionIndex"`
	TotalQuestions int             `json:"totalQuestions"`
}

type AnswerResultPayload struct {
	Correct       bool    `json:"correct"`
	CorrectAnswer int     `json:"correctAnswer"`
	Points        int     `json:"points"`
	BonusPoints   int     `json:"bonusPoints"`
	TotalPoints   int     `json:"totalPoints"`
	NewScore      int     `json:"newScore"`
	ResponseTime  float64 `json:"responseTime"`
}

type PlayerAnsweredPayload struct {
	PlayerID     string  `json:"playerId"`
	PlayerName   string  `json:"playerName"`
	PlayerAvatar string  `json:"playerAvatar"`
	Correct      bool    `json:"correct"`
	ResponseTime float64 `json:"responseTime"`
	BonusPoints  int     `json:"bonusPoints"`
	NewScore     int     `json:"newScore"`
}

type BuzzerPressedPayload struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	PlayerAvatar string `json:"playerAvatar"`
	Timestamp    int64  `json:"timestamp"`
}

type BuzzerPointsAwardedPayload struct {
	Points   int `json:"points"`
	NewScore int `json:"newScore"`
}

// BuzzerUnlockedPayload is sent per affected player; PlayerIDs carries the
// literal "all" when every buzzer was reset.
type BuzzerUnlockedPayload struct {
	PlayerID  string `json:"playerId"`
	PlayerIDs string `json:"playerIds,omitempty"`
}

type PlayerScoreUpdatedPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	NewScore   int    `json:"newScore"`
}

type LeaderboardPayload struct {
	Players   []domain.Player `json:"players"`
	QuizTitle string          `json:"quizTitle"`
}

type ShowResultsPayload struct {
	Players []domain.Player `json:"players"`
}

type GameOverPayload struct {
	Players []domain.Player `json:"players"`
	Winner  *domain.Player  `json:"winner,omitempty"`
}

type GameRestartedPayload struct {
	Players []domain.Player `json:"players"`
}

type PlayerLeftPayload struct {
	PlayerName string          `json:"playerName"`
	Players    []domain.Player `json:"players"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
