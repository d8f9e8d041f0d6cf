package protocol

import (
	"errors"
	"fmt"
	"testing"

	"word-party/internal/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinelByCode(t *testing.T) {
	decoded := FromWire(CodeRoomFull, "Room is full")

	assert.ErrorIs(t, decoded, ErrRoomFull)
	assert.NotErrorIs(t, decoded, ErrRoomNotFound)
	assert.ErrorIs(t, fmt.Errorf("join: %w", decoded), ErrRoomFull)
	assert.Equal(t, CodeRoomFull, CodeOf(fmt.Errorf("wrapped: %w", decoded)))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestErrorEnvelopeRoundTripsCode(t *testing.T) {
	env := ErrorEnvelope(ErrNotHost, "req-1")
	raw, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "req-1", decoded.RequestID)
	assert.ErrorIs(t, decoded.Err(), ErrNotHost)
	assert.Equal(t, ErrNotHost.Message, decoded.Err().Error())
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	for name, raw := range map[string]string{
		"not json": `{"type":`,
		"no type":  `{"roomCode":"ABC123"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}
}

func TestValidateInbound(t *testing.T) {
	join := Envelope{Type: TypeJoinRoom, RoomCode: " abc123 "}
	require.NoError(t, ValidateInbound(&join))
	assert.Equal(t, "ABC123", join.RoomCode)

	badCode := Envelope{Type: TypeJoinRoom, RoomCode: "AB-12"}
	assert.ErrorIs(t, ValidateInbound(&badCode), ErrInvalidMessage)

	outbound := Envelope{Type: TypeRoomJoined}
	assert.ErrorIs(t, ValidateInbound(&outbound), ErrInvalidMessage)

	action := Envelope{Type: TypeGameAction}
	assert.ErrorIs(t, ValidateInbound(&action), ErrInvalidMessage)

	rename := Envelope{Type: TypeUpdatePlayer, Name: "  "}
	assert.ErrorIs(t, ValidateInbound(&rename), ErrInvalidMessage)
}

func TestSettingsNormalizeAndValidate(t *testing.T) {
	settings := Settings{}.Normalize()
	assert.Equal(t, DefaultSettings(), settings)
	require.NoError(t, settings.Validate())

	assert.ErrorIs(t, Settings{Category: "Mixed", RoundDuration: 60, MaxPlayers: 1}.Validate(), ErrInvalidSettings)
	assert.ErrorIs(t, Settings{Category: "Mixed", RoundDuration: -5, MaxPlayers: 2}.Validate(), ErrInvalidSettings)
}

func TestRoomCodes(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := NewRoomCode()
		assert.True(t, ValidRoomCode(code), code)
	}
	assert.False(t, ValidRoomCode("abc123"))
	assert.False(t, ValidRoomCode("ABC12"))
	assert.True(t, ValidRoomCode("ZZ0000"))
}

func TestEphemeralIgnoresAuthoritativeFields(t *testing.T) {
	env := Envelope{Type: TypeGameStateUpdate, State: []byte(`{"currentWord":"moon","timeLeft":12,"scores":{"p1":99},"status":"finished"}`)}

	patch, err := env.Ephemeral()
	require.NoError(t, err)
	require.NotNil(t, patch.CurrentWord)
	assert.Equal(t, "moon", *patch.CurrentWord)
	assert.Equal(t, 12, *patch.TimeLeft)
	assert.Nil(t, patch.CurrentRound)
}

func TestJoinedEnvelopeCarriesSnapshot(t *testing.T) {
	state := game.NewState()
	state.Scores["p1"] = 2
	snap := RoomSnapshot{
		Code:     "ABC123",
		HostID:   "p1",
		Settings: DefaultSettings(),
		Players:  []PlayerInfo{{ID: "p1", Name: "Ana", IsHost: true, Status: StatusOnline}},
		State:    state,
		Actions:  []game.Action{{ID: "ABC123-1", Seq: 1, Type: game.ActionGameStarted}},
	}

	raw, err := Encode(JoinedEnvelope(snap))
	require.NoError(t, err)
	decoded, err := Decode(raw)
	require.NoError(t, err)

	got := decoded.Snapshot()
	assert.Equal(t, snap.Code, got.Code)
	assert.Equal(t, snap.HostID, got.HostID)
	assert.Equal(t, snap.Players, got.Players)
	assert.Equal(t, 2, got.State.Scores["p1"])
	assert.Len(t, got.Actions, 1)
}

func TestResultFromState(t *testing.T) {
	state := game.NewState()
	state.Scores["p1"] = 3
	state.Scores["p2"] = 3
	state.Scores["p3"] = 1

	result := ResultFrom(state)
	assert.Equal(t, []string{"p1", "p2"}, result.Winners)
	assert.Equal(t, 1, result.Scores["p3"])
}

func TestReplyPairs(t *testing.T) {
	assert.Equal(t, TypeRoomCreated, Reply(TypeCreateRoom))
	assert.Equal(t, TypeActionAccepted, Reply(TypeGameAction))
	assert.Equal(t, TypePong, Reply(TypePing))
	assert.Equal(t, MessageType(""), Reply(TypeRoomJoined))
}
