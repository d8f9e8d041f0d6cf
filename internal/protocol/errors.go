package protocol

import (
	"errors"
	"fmt"
)

// Code identifies a failure in the shared error taxonomy. Codes travel on the
// wire next to the human-readable message.
type Code string

const (
	CodeConnectionFailed    Code = "ConnectionFailed"
	CodeConnectionLost      Code = "ConnectionLost"
	CodeRoomNotFound        Code = "RoomNotFound"
	CodeRoomFull            Code = "RoomFull"
	CodeGameInProgress      Code = "GameInProgress"
	CodeNotHost             Code = "NotHost"
	CodeInsufficientPlayers Code = "InsufficientPlayers"
	CodeRoomNotPlaying      Code = "RoomNotPlaying"
	CodeInvalidMessage      Code = "InvalidMessage"
	CodeMaxReconnects       Code = "MaxReconnectAttemptsExceeded"
	CodeInvalidSettings     Code = "InvalidSettings"
	CodeNotInRoom           Code = "NotInRoom"
	CodeGameFinished        Code = "GameFinished"
	CodeRateLimited         Code = "RateLimited"
	CodeUnauthorized        Code = "Unauthorized"
	CodeRequestTimeout      Code = "RequestTimeout"
)

// Error is a typed protocol failure. Two errors are equal under errors.Is
// when their codes match, so a decoded wire error matches the sentinel.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Errorf returns an error carrying code with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrConnectionFailed    = &Error{Code: CodeConnectionFailed, Message: "could not connect to the game server"}
	ErrConnectionLost      = &Error{Code: CodeConnectionLost, Message: "connection to the game server was lost"}
	ErrRoomNotFound        = &Error{Code: CodeRoomNotFound, Message: "room not found"}
	ErrRoomFull            = &Error{Code: CodeRoomFull, Message: "room is full"}
	ErrGameInProgress      = &Error{Code: CodeGameInProgress, Message: "game already in progress"}
	ErrNotHost             = &Error{Code: CodeNotHost, Message: "only the host can do that"}
	ErrInsufficientPlayers = &Error{Code: CodeInsufficientPlayers, Message: "need at least 2 players to start"}
	ErrRoomNotPlaying      = &Error{Code: CodeRoomNotPlaying, Message: "game is not being played"}
	ErrInvalidMessage      = &Error{Code: CodeInvalidMessage, Message: "invalid message"}
	ErrMaxReconnects       = &Error{Code: CodeMaxReconnects, Message: "could not reconnect to the game server"}
	ErrInvalidSettings     = &Error{Code: CodeInvalidSettings, Message: "invalid room settings"}
	ErrNotInRoom           = &Error{Code: CodeNotInRoom, Message: "not in a room"}
	ErrGameFinished        = &Error{Code: CodeGameFinished, Message: "game has finished"}
	ErrRateLimited         = &Error{Code: CodeRateLimited, Message: "too many messages"}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrRequestTimeout      = &Error{Code: CodeRequestTimeout, Message: "request timed out"}
)

// FromWire rebuilds a typed error from an error envelope. Unknown codes keep
// their message and code so callers can still surface them.
func FromWire(code Code, message string) *Error {
	if code == "" {
		code = CodeInvalidMessage
	}
	return &Error{Code: code, Message: message}
}

// CodeOf returns the taxonomy code of err, or "" when err is not a protocol
// error.
func CodeOf(err error) Code {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}
