package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room code does not resolve.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomCodeTaken is returned by the registry when a code is already in use.
	ErrRoomCodeTaken = errors.New("room code already in use")
	// ErrUnauthorized is returned when a non-host issues a host-only command.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPlayerNotFound is returned when a player id does not resolve in a room.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrNoPlayers is returned when a game is started with an empty lobby.
	ErrNoPlayers = errors.New("cannot start game without players")
	// ErrNoQuestions is returned when a room is created from an empty quiz.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrUnscorableQuestion is returned when submit-answer targets a question
	// type without a server-side judging path.
	ErrUnscorableQuestion = errors.New("question type cannot be scored by the server")
)
