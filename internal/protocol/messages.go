package protocol

// MessageType is the envelope discriminator.
type MessageType string

// Client to authority.
const (
	TypeCreateRoom   MessageType = "createRoom"
	TypeJoinRoom     MessageType = "joinRoom"
	TypeLeaveRoom    MessageType = "leaveRoom"
	TypeStartGame    MessageType = "startGame"
	TypeEndGame      MessageType = "endGame"
	TypeUpdatePlayer MessageType = "updatePlayer"
	TypePing         MessageType = "ping"
)

// Authority to client.
const (
	TypeConnected      MessageType = "connected"
	TypeRoomCreated    MessageType = "roomCreated"
	TypeRoomJoined     MessageType = "roomJoined"
	TypeRoomLeft       MessageType = "roomLeft"
	TypeRoomClosed     MessageType = "roomClosed"
	TypePlayerJoined   MessageType = "playerJoined"
	TypePlayerLeft     MessageType = "playerLeft"
	TypePlayerUpdated  MessageType = "playerUpdated"
	TypeHostChanged    MessageType = "hostChanged"
	TypeGameStarted    MessageType = "gameStarted"
	TypeGameEnded      MessageType = "gameEnded"
	TypeActionAccepted MessageType = "actionAccepted"
	TypeError          MessageType = "error"
	TypePong           MessageType = "pong"
)

// Both directions.
const (
	TypeGameAction      MessageType = "gameAction"
	TypeGameStateUpdate MessageType = "gameStateUpdate"
)

// Inbound reports whether t is something a client may send to the authority.
func Inbound(t MessageType) bool {
	switch t {
	case TypeCreateRoom, TypeJoinRoom, TypeLeaveRoom, TypeStartGame, TypeEndGame,
		TypeUpdatePlayer, TypePing, TypeGameAction, TypeGameStateUpdate:
		return true
	}
	return false
}

// Reply returns the message type that answers a request of type t.
func Reply(t MessageType) MessageType {
	switch t {
	case TypeCreateRoom:
		return TypeRoomCreated
	case TypeJoinRoom:
		return TypeRoomJoined
	case TypeLeaveRoom:
		return TypeRoomLeft
	case TypeStartGame:
		return TypeGameStarted
	case TypeGameAction:
		return TypeActionAccepted
	case TypeEndGame:
		return TypeGameEnded
	case TypeGameStateUpdate:
		return TypeGameStateUpdate
	case TypeUpdatePlayer:
		return TypePlayerUpdated
	case TypePing:
		return TypePong
	}
	return ""
}
