package game

import "fmt"

// Code is the machine-readable kind of a client-input error.
type Code string

const (
	CodeRoomNotFound     Code = "RoomNotFound"
	CodeRoomFull         Code = "RoomFull"
	CodeAlreadyStarted   Code = "AlreadyStarted"
	CodeNotHost          Code = "NotHost"
	CodeNotInRound       Code = "NotInRound"
	CodeAlreadyVoted     Code = "AlreadyVoted"
	CodeInvalidTarget    Code = "InvalidTarget"
	CodeNotEnoughPlayers Code = "NotEnoughPlayers"
	CodeNotReady         Code = "NotReady"
	CodeNotEnded         Code = "NotEnded"
	CodePlayerNotFound   Code = "PlayerNotFound"
	CodeNotInRoom        Code = "NotInRoom"
	CodeInvalidCapacity  Code = "InvalidCapacity"
	CodeInvalidUsername  Code = "InvalidUsername"
	CodeCannotKickSelf   Code = "CannotKickSelf"
	CodeRoundIncomplete  Code = "RoundIncomplete"
	CodeInvalidToken     Code = "InvalidToken"
	CodeRateLimited      Code = "RateLimited"
	CodeBadRequest       Code = "BadRequest"
	CodeUnavailable      Code = "Unavailable"
	CodeInternal         Code = "Internal"
	CodeNotFound         Code = "NotFound"
)

// Error is a client-input error. It is reported to the offending connection
// only and never affects other room members.
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Is matches errors by code so wrapped or re-worded errors still compare
// equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Errorf builds an Error with a custom message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrRoomNotFound     = &Error{Code: CodeRoomNotFound, Message: "Room not found"}
	ErrRoomFull         = &Error{Code: CodeRoomFull, Message: "Room is full"}
	ErrAlreadyStarted   = &Error{Code: CodeAlreadyStarted, Message: "Game already started"}
	ErrNotHost          = &Error{Code: CodeNotHost, Message: "Only the host can do that"}
	ErrNotInRound       = &Error{Code: CodeNotInRound, Message: "No vote is open for you"}
	ErrAlreadyVoted     = &Error{Code: CodeAlreadyVoted, Message: "You already voted"}
	ErrInvalidTarget    = &Error{Code: CodeInvalidTarget, Message: "Not a choice of this passage"}
	ErrNotEnoughPlayers = &Error{Code: CodeNotEnoughPlayers, Message: "Waiting for players"}
	ErrNotReady         = &Error{Code: CodeNotReady, Message: "Not everyone is ready"}
	ErrNotEnded         = &Error{Code: CodeNotEnded, Message: "The story has not ended yet"}
	ErrPlayerNotFound   = &Error{Code: CodePlayerNotFound, Message: "Player not found"}
	ErrNotInRoom        = &Error{Code: CodeNotInRoom, Message: "You are not in this room"}
	ErrInvalidCapacity  = &Error{Code: CodeInvalidCapacity, Message: "Invalid capacity"}
	ErrInvalidUsername  = &Error{Code: CodeInvalidUsername, Message: "Username is required"}
	ErrCannotKickSelf   = &Error{Code: CodeCannotKickSelf, Message: "You cannot kick yourself"}
	ErrRoundIncomplete  = &Error{Code: CodeRoundIncomplete, Message: "Round is still open"}
	ErrInvalidToken     = &Error{Code: CodeInvalidToken, Message: "Session expired"}
	ErrRateLimited      = &Error{Code: CodeRateLimited, Message: "Slow down"}
	ErrBadRequest       = &Error{Code: CodeBadRequest, Message: "Bad request"}
)
