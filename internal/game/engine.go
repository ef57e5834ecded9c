package game

import (
	"context"
	"log"
	"sort"
	"time"

	"quizer-server/internal/domain"
)

// RoomRegistry abstracts how rooms are stored (in-memory, Redis-mirrored).
type RoomRegistry interface {
	Create(code string, room *Room) error
	Get(code string) (*Room, bool)
	Remove(code string)
	ForEach(fn func(room *Room))
}

// Sender delivers an envelope to a single connection. Delivery is
// best-effort: a message to a connection that has already gone away is
// silently dropped.
type Sender interface {
	Send(connID string, env Envelope)
}

// ResultArchive records final standings when a game finishes. It is
// write-only: nothing is ever read back into live rooms.
type ResultArchive interface {
	SaveResult(ctx context.Context, result domain.GameResult) error
}

// Speed bonus schedule for the fastest correct answers, by rank.
var speedBonus = [...]int{50, 30, 10}

const maxCodeAttempts = 50

// Options tunes engine behavior.
type Options struct {
	// ReconnectGrace is how long a disconnected player's roster entry (and
	// score) is retained for a same-name rejoin. Zero removes immediately.
	ReconnectGrace time.Duration
	// AllowEmptyStart lets a host start a game with no players (test mode).
	AllowEmptyStart bool
	// Clock overrides time.Now for deterministic tests.
	Clock func() time.Time
}

// Engine is the per-room session state machine: it validates host
// authority, advances the question index, tracks the roster, scores
// answers, arbitrates buzzer presses, and fans out state deltas.
type Engine struct {
	rooms   RoomRegistry
	send    Sender
	archive ResultArchive

	now             func() time.Time
	grace           time.Duration
	allowEmptyStart bool
}

// NewEngine wires the engine to its registry and transport. archive may be
// nil when no results store is configured.
func NewEngine(rooms RoomRegistry, send Sender, archive ResultArchive, opts Options) *Engine {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		rooms:           rooms,
		send:            send,
		archive:         archive,
		now:             now,
		grace:           opts.ReconnectGrace,
		allowEmptyStart: opts.AllowEmptyStart,
	}
}

func (e *Engine) sendTo(connID, msgType string, payload any) {
	e.send.Send(connID, Envelope{Type: msgType, Payload: payload})
}

func (e *Engine) broadcast(ids []string, msgType string, payload any) {
	env := Envelope{Type: msgType, Payload: payload}
	for _, id := range ids {
		e.send.Send(id, env)
	}
}

// hostRoom resolves a room and checks that connID is its host.
func (e *Engine) hostRoom(connID, roomCode string) (*Room, error) {
	room, ok := e.rooms.Get(roomCode)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if room.HostID() != connID {
		return nil, domain.ErrUnauthorized
	}
	return room, nil
}

// CreateRoom registers a new room in the lobby state and replies with its
// code. The code is derived from the trailing characters of the quiz id;
// on collision the engine falls back to random codes instead of silently
// overwriting the existing room.
func (e *Engine) CreateRoom(connID, quizID string, quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return domain.ErrNoQuestions
	}

	code := deriveCode(quizID)
	var room *Room
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		room = newRoom(code, connID, quiz, e.now())
		if err := e.rooms.Create(code, room); err == nil {
			break
		}
		room = nil
		code = randomCode()
	}
	if room == nil {
		return domain.ErrRoomCodeTaken
	}

	e.sendTo(connID, MsgRoomCreated, RoomCreatedPayload{RoomCode: code})
	log.Printf("room %s created by %s (quiz %q, %d questions)", code, connID, quiz.Title, len(quiz.Questions))
	return nil
}

// JoinRoom adds a player to a room, or rebinds an existing roster entry
// when the name matches one that is still retained (duplicate tab, or a
// drop within the reconnect grace window). Reconnection keeps the score,
// re-announces the player to the rest of the room, and, mid-question,
// resends the in-flight question so the client can resume. A genuinely
// new player joining mid-game is flagged as a late join and defers
// interaction to the next question boundary.
func (e *Engine) JoinRoom(connID, roomCode, name, avatar string) error {
	room, ok := e.rooms.Get(roomCode)
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()

	existing := room.findByConnLocked(connID)
	if existing == nil {
		existing = room.findByNameLocked(name)
	}

	if existing != nil {
		if t, ok := room.pruneTimers[existing.Name]; ok {
			t.Stop()
			delete(room.pruneTimers, existing.Name)
		}
		existing.ConnectionID = connID
		existing.Connected = true

		state := RoomStatePayload{
			State:           room.state,
			Players:         room.rosterLocked(),
			CurrentQuestion: room.current,
			Reconnected:     true,
		}
		if room.state == domain.StateQuestion {
			view := room.quiz.Questions[room.current].View()
			state.Question = &view
		}
		// The room saw player-left on the drop; the rejoin has to be
		// re-announced or everyone else's roster stays stale.
		joined := PlayerJoinedPayload{Player: *existing, Players: state.Players}
		recipients := room.recipientsLocked()
		room.mu.Unlock()

		e.broadcast(recipients, MsgPlayerJoined, joined)
		e.sendTo(connID, MsgRoomState, state)
		log.Printf("player %s reconnected to room %s as %s", name, roomCode, connID)
		return nil
	}

	player := &domain.Player{
		ConnectionID: connID,
		Name:         name,
		Avatar:       avatar,
		Connected:    true,
	}
	room.players = append(room.players, player)

	joined := PlayerJoinedPayload{Player: *player, Players: room.rosterLocked()}
	state := RoomStatePayload{
		State:           room.state,
		Players:         joined.Players,
		CurrentQuestion: room.current,
		LateJoin:        room.state != domain.StateLobby,
	}
	recipients := room.recipientsLocked()
	room.mu.Unlock()

	e.broadcast(recipients, MsgPlayerJoined, joined)
	e.sendTo(connID, MsgRoomState, state)
	log.Printf("player %s joined room %s", name, roomCode)
	return nil
}

// JoinLeaderboard subscribes a read-only spectator to a room's broadcasts
// and immediately sends the current leaderboard.
func (e *Engine) JoinLeaderboard(connID, roomCode string) error {
	room, ok := e.rooms.Get(roomCode)
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()
	room.spectators[connID] = struct{}{}
	payload := LeaderboardPayload{Players: room.standingsLocked(), QuizTitle: room.quiz.Title}
	room.mu.Unlock()

	e.sendTo(connID, MsgLeaderboardUpdate, payload)
	return nil
}

// StartGame moves the room from lobby to the first question (host only).
func (e *Engine) StartGame(connID, roomCode string) error {
	room, err := e.hostRoom(connID, roomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	if len(room.rosterLocked()) == 0 && !e.allowEmptyStart {
		room.mu.Unlock()
		return domain.ErrNoPlayers
	}
	room.state = domain.StateQuestion
	room.current = 0
	room.answers = make(map[int][]domain.AnswerRecord)
	room.archived = false
	room.resetQuestionLocked()

	payload := QuestionPayload{
		Question:       room.quiz.Questions[0].View(),
		QuestionIndex:  0,
		TotalQuestions: len(room.quiz.Questions),
	}
	hostPayload := HostQuestionPayload{
		Question:       room.quiz.Questions[0],
		QuestionIndex:  0,
		TotalQuestions: len(room.quiz.Questions),
	}
	hostID := room.hostID
	audience := room.audienceLocked()
	room.mu.Unlock()

	e.sendTo(hostID, MsgGameStarted, hostPayload)
	e.broadcast(audience, MsgGameStarted, payload)
	log.Printf("game started in room %s", roomCode)
	return nil
}

// SubmitAnswer scores a player's answer against the active question. The
// first submission per player per question wins; repeats are ignored. The
// outcome goes privately to the player plus a notification to the host;
// other players learn nothing.
func (e *Engine) SubmitAnswer(connID, roomCode string, answer int, responseTime float64) error {
	room, ok := e.rooms.Get(roomCode)
	if !ok {
		return nil // player-scoped: silently ignored
	}

	room.mu.Lock()
	player := room.findByConnLocked(connID)
	if player == nil || !player.Connected || room.state != domain.StateQuestion {
		room.mu.Unlock()
		return nil
	}

	question := room.quiz.Questions[room.current]
	if !question.Judgeable() {
		room.mu.Unlock()
		return domain.ErrUnscorableQuestion
	}

	// First write wins.
	for _, rec := range room.answers[room.current] {
		if rec.PlayerName == player.Name {
			room.mu.Unlock()
			return nil
		}
	}

	correct := answer == question.CorrectAnswer
	room.answers[room.current] = append(room.answers[room.current], domain.AnswerRecord{
		PlayerID:     player.ConnectionID,
		PlayerName:   player.Name,
		Correct:      correct,
		ResponseTime: responseTime,
		Timestamp:    e.now(),
	})

	bonus := 0
	if correct {
		bonus = e.speedBonusLocked(room, player.Name)
	}

	total := 0
	points := 0
	if correct {
		points = question.Points
		total = points + bonus
		player.Score = clampScore(player.Score + total)
	}
	player.HasAnswered = true
	player.Correct = correct
	player.ResponseTime = responseTime
	player.BonusPoints = bonus

	result := AnswerResultPayload{
		Correct:       correct,
		CorrectAnswer: question.CorrectAnswer,
		Points:        points,
		BonusPoints:   bonus,
		TotalPoints:   total,
		NewScore:      player.Score,
		ResponseTime:  responseTime,
	}
	hostNote := PlayerAnsweredPayload{
		PlayerID:     player.ConnectionID,
		PlayerName:   player.Name,
		PlayerAvatar: player.Avatar,
		Correct:      correct,
		ResponseTime: responseTime,
		BonusPoints:  bonus,
		NewScore:     player.Score,
	}
	hostID := room.hostID
	room.mu.Unlock()

	e.sendTo(connID, MsgAnswerResult, result)
	e.sendTo(hostID, MsgPlayerAnswered, hostNote)
	return nil
}

// speedBonusLocked ranks the player among the correct answers recorded for
// the current question, fastest response first, and returns the bonus for
// that rank.
func (e *Engine) speedBonusLocked(room *Room, playerName string) int {
	correct := make([]domain.AnswerRecord, 0, len(room.answers[room.current]))
	for _, rec := range room.answers[room.current] {
		if rec.Correct {
			correct = append(correct, rec)
		}
	}
	sort.SliceStable(correct, func(i, j int) bool {
		return correct[i].ResponseTime < correct[j].ResponseTime
	})
	for i, rec := range correct {
		if rec.PlayerName == playerName {
			if i < len(speedBonus) {
				return speedBonus[i]
			}
			return 0
		}
	}
	return 0
}

// PressBuzzer locks the player's buzzer and notifies only the host. A press
// while already locked is a no-op. Arrival order at the server drives the
// host's awarding decision; under asymmetric latency that order may differ
// from true press order.
func (e *Engine) PressBuzzer(connID, roomCode string) error {
	room, ok := e.rooms.Get(roomCode)
	if !ok {
		return nil
	}

	room.mu.Lock()
	player := room.findByConnLocked(connID)
	if player == nil || !player.Connected {
		room.mu.Unlock()
		return nil
	}
	if _, locked := room.buzzed[player.Name]; locked {
		room.mu.Unlock()
		return nil
	}
	room.buzzed[player.Name] = struct{}{}

	payload := BuzzerPressedPayload{
		PlayerID:     player.ConnectionID,
		PlayerName:   player.Name,
		PlayerAvatar: player.Avatar,
		Timestamp:    e.now().UnixMilli(),
	}
	hostID := room.hostID
	room.mu.Unlock()

	e.sendTo(hostID, MsgBuzzerPressed, payload)
	log.Printf("buzzer pressed by %s in room %s", payload.PlayerName, roomCode)
	return nil
}

// AwardBuzzerPoints adds host-chosen points to a player's score (host
// only). The player's buzzer stays locked until explicitly unlocked.
func (e *Engine) AwardBuzzerPoints(connID, roomCode, playerID string, points int) error {
	room, err := e.hostRoom(connID, roomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	player := room.findByConnLocked(playerID)
	if player == nil {
		room.mu.Unlock()
		return nil
	}
	player.Score = clampScore(player.Score + points)

	awarded := BuzzerPointsAwardedPayload{Points: points, NewScore: player.Score}
	updated := PlayerScoreUpdatedPayload{PlayerID: player.ConnectionID, PlayerName: player.Name, NewScore: player.Score}
	leaderboard := LeaderboardPayload{Players: room.standingsLocked(), QuizTitle: room.quiz.Title}
	recipients := room.recipientsLocked()
	target := player.ConnectionID
	room.mu.Unlock()

	e.sendTo(target, MsgBuzzerPointsAwarded, awarded)
	e.sendTo(connID, MsgPlayerScoreUpdated, updated)
	e.broadcast(recipients, MsgLeaderboardUpdate, leaderboard)
	return nil
}

// UnlockBuzzers clears buzzer locks (host only). With all=true every
// connected player is notified and the lock set is emptied, which is
// idempotent; otherwise only the named players are unlocked and notified.
func (e *Engine) UnlockBuzzers(connID, roomCode string, all bool, playerIDs []string) error {
	room, err := e.hostRoom(connID, roomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	type target struct {
		connID  string
		payload BuzzerUnlockedPayload
	}
	var targets []target
	if all {
		room.buzzed = make(map[string]struct{})
		for _, p := range room.players {
			if p.Connected {
				targets = append(targets, target{p.ConnectionID, BuzzerUnlockedPayload{PlayerID: p.ConnectionID, PlayerIDs: "all"}})
			}
		}
	} else {
		for _, id := range playerIDs {
			p := room.findByConnLocked(id)
			if p == nil {
				continue
			}
			delete(room.buzzed, p.Name)
			if p.Connected {
				targets = append(targets, target{p.ConnectionID, BuzzerUnlockedPayload{PlayerID: p.ConnectionID}})
			}
		}
	}
	room.mu.Unlock()

	for _, t := range targets {
		e.sendTo(t.connID, MsgBuzzerUnlocked, t.payload)
	}
	return nil
}

// AdjustPlayerScore applies a host-chosen delta, clamped at zero, and
// broadcasts the new score plus a re-sorted leaderboard to the whole room.
func (e *Engine) AdjustPlayerScore(connID, roomCode, playerID string, delta int) error {
	room, err := e.hostRoom(connID, roomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	player := room.findByConnLocked(playerID)
	if player == nil {
		room.mu.Unlock()
		return nil
	}
	player.Score = clampScore(player.Score + delta)

	updated := PlayerScoreUpdatedPayload{PlayerID: player.ConnectionID, PlayerName: player.Name, NewScore: player.Score}
	leaderboard := LeaderboardPayload{Players: room.standingsLocked(), QuizTitle: room.quiz.Title}
	recipients := room.recipientsLocked()
	room.mu.Unlock()

	e.broadcast(recipients, MsgPlayerScoreUpdated, updated)
	e.broadcast(recipients, MsgLeaderboardUpdate, leaderboard)
	return nil
}

// ShowResults broadcasts the interim scoreboard (host only).
func (e *Engine) ShowResults(connID, roomCode string) error {
	room, err := e.hostRoom(connID, roomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	room.state = domain.StateResults
	payload := ShowResultsPayload{Players: room.standingsLocked()}
	recipients := room.recipientsLocked()
	room.mu.Unlock()

	e.broadcast(recipients, MsgShowResults, payload)
	return nil
}

// NextQuestion advances the question index (host only). When the quiz is
// exhausted the room enters the final state and the sorted standings plus
// the winner are broadcast.
func (e *Engine) NextQuestion(connID, roomCode string) error {
	room, err := e.hostRoom(connID, roomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	room.current++
	room.resetQuestionLocked()

	if room.current < len(room.quiz.Questions) {
		room.state = domain.StateQuestion
		payload := QuestionPayload{
			Question:       room.quiz.Questions[room.current].View(),
			QuestionIndex:  room.current,
			TotalQuestions: len(room.quiz.Questions),
		}
		hostPayload := HostQuestionPayload{
			Question:       room.quiz.Questions[room.current],
			QuestionIndex:  room.current,
			TotalQuestions: len(room.quiz.Questions),
		}
		hostID := room.hostID
		audience := room.audienceLocked()
		room.mu.Unlock()

		e.sendTo(hostID, MsgNextQuestion, hostPayload)
		e.broadcast(audience, MsgNextQuestion, payload)
		return nil
	}

	room.state = domain.StateFinal
	standings := room.standingsLocked()
	payload := GameOverPayload{Players: standings}
	if len(standings) > 0 {
		payload.Winner = &standings[0]
	}
	result := room.resultLocked(e.now())
	alreadyArchived := room.archived
	room.archived = true
	recipients := room.recipientsLocked()
	room.mu.Unlock()

	e.broadcast(recipients, MsgGameOver, payload)
	if !alreadyArchived {
		e.archiveResult(result)
	}
	log.Printf("game over in room %s", roomCode)
	return nil
}

// EndGame broadcasts final standings and tears the room down (host only).
func (e *Engine) EndGame(connID, roomCode string) error {
	room, err := e.hostRoom(connID, roomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	standings := room.standingsLocked()
	payload := GameOverPayload{Players: standings}
	if len(standings) > 0 {
		payload.Winner = &standings[0]
	}
	result := room.resultLocked(e.now())
	// Nothing worth archiving if the game never left the lobby.
	alreadyArchived := room.archived || room.state == domain.StateLobby
	recipients := room.recipientsLocked()
	room.stopTimersLocked()
	room.mu.Unlock()

	e.rooms.Remove(roomCode)
	e.broadcast(recipients, MsgGameEnded, payload)
	if !alreadyArchived {
		e.archiveResult(result)
	}
	log.Printf("room %s ended by host", roomCode)
	return nil
}

// RestartGame returns the room to the lobby with scores and question index
// reset (host only).
func (e *Engine) RestartGame(connID, roomCode string) error {
	room, err := e.hostRoom(connID, roomCode)
	if err != nil {
		return err
	}

	room.mu.Lock()
	room.state = domain.StateLobby
	room.current = 0
	room.answers = make(map[int][]domain.AnswerRecord)
	room.archived = false
	for _, p := range room.players {
		p.Score = 0
	}
	room.resetQuestionLocked()

	payload := GameRestartedPayload{Players: room.rosterLocked()}
	recipients := room.recipientsLocked()
	room.mu.Unlock()

	e.broadcast(recipients, MsgGameRestarted, payload)
	log.Printf("game restarted in room %s", roomCode)
	return nil
}

// LeaveRoom removes a player immediately, with no reconnect grace.
func (e *Engine) LeaveRoom(connID, roomCode string) error {
	room, ok := e.rooms.Get(roomCode)
	if !ok {
		return nil
	}

	room.mu.Lock()
	delete(room.spectators, connID)
	player := room.findByConnLocked(connID)
	if player == nil {
		room.mu.Unlock()
		return nil
	}
	room.removePlayerLocked(player)
	payload := PlayerLeftPayload{PlayerName: player.Name, Players: room.rosterLocked()}
	recipients := room.recipientsLocked()
	room.mu.Unlock()

	e.broadcast(recipients, MsgPlayerLeft, payload)
	log.Printf("player %s left room %s", payload.PlayerName, roomCode)
	return nil
}

// Disconnect handles an abrupt transport-level drop. A host disconnect
// destroys the room and notifies everyone left in it. A player disconnect
// hides the player from the roster right away but retains the entry for
// the reconnect grace window so a same-name rejoin keeps its score.
func (e *Engine) Disconnect(connID string) {
	var affected []*Room
	e.rooms.ForEach(func(room *Room) {
		affected = append(affected, room)
	})

	for _, room := range affected {
		if room.HostID() == connID {
			room.mu.Lock()
			recipients := room.recipientsLocked()
			room.stopTimersLocked()
			code := room.code
			room.mu.Unlock()

			e.rooms.Remove(code)
			for _, id := range recipients {
				if id == connID {
					continue
				}
				e.sendTo(id, MsgHostDisconnected, nil)
			}
			log.Printf("room %s closed, host disconnected", code)
			continue
		}

		room.mu.Lock()
		if _, ok := room.spectators[connID]; ok {
			delete(room.spectators, connID)
			room.mu.Unlock()
			continue
		}
		player := room.findByConnLocked(connID)
		if player == nil || !player.Connected {
			room.mu.Unlock()
			continue
		}
		player.Connected = false

		if e.grace <= 0 {
			room.removePlayerLocked(player)
		} else {
			e.schedulePruneLocked(room, player)
		}

		payload := PlayerLeftPayload{PlayerName: player.Name, Players: room.rosterLocked()}
		recipients := room.recipientsLocked()
		code := room.code
		room.mu.Unlock()

		e.broadcast(recipients, MsgPlayerLeft, payload)
		log.Printf("player %s disconnected from room %s", payload.PlayerName, code)
	}
}

// schedulePruneLocked arms the grace timer that drops a disconnected
// player's roster entry unless a same-name rejoin reclaims it first.
func (e *Engine) schedulePruneLocked(room *Room, player *domain.Player) {
	name := player.Name
	droppedConn := player.ConnectionID
	if t, ok := room.pruneTimers[name]; ok {
		t.Stop()
	}
	room.pruneTimers[name] = time.AfterFunc(e.grace, func() {
		room.mu.Lock()
		defer room.mu.Unlock()
		delete(room.pruneTimers, name)
		p := room.findByNameLocked(name)
		if p == nil || p.Connected || p.ConnectionID != droppedConn {
			return
		}
		room.removePlayerLocked(p)
	})
}

func (e *Engine) archiveResult(result domain.GameResult) {
	if e.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.archive.SaveResult(ctx, result); err != nil {
			log.Printf("archive result for room %s: %v", result.RoomCode, err)
		}
	}()
}

// Stats reports active rooms and connected players across the process,
// for the HTTP status surface.
type Stats struct {
	ActiveRooms  int
	TotalPlayers int
}

func (e *Engine) Stats() Stats {
	var s Stats
	e.rooms.ForEach(func(room *Room) {
		room.mu.Lock()
		s.ActiveRooms++
		s.TotalPlayers += len(room.rosterLocked())
		room.mu.Unlock()
	})
	return s
}
