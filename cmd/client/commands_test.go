package main

import (
	"testing"

	"word-party/internal/game"
	"word-party/internal/protocol"
	"word-party/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	c, ok := parseCommand("  GUESS owl 2 ")
	require.True(t, ok)
	assert.Equal(t, "guess", c.name)
	assert.Equal(t, "owl", c.arg(0))
	points, err := c.intArg(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, points)
	assert.Empty(t, c.arg(5))

	_, ok = parseCommand("   ")
	assert.False(t, ok)
}

func TestSettingsFrom(t *testing.T) {
	settings, err := settingsFrom(command{name: "create"})
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultSettings(), settings)

	settings, err = settingsFrom(command{name: "create", args: []string{"Animals", "90", "4"}})
	require.NoError(t, err)
	assert.Equal(t, protocol.Settings{Category: "Animals", RoundDuration: 90, MaxPlayers: 4}, settings)

	_, err = settingsFrom(command{name: "create", args: []string{"Animals", "ninety"}})
	assert.Error(t, err)

	_, err = settingsFrom(command{name: "create", args: []string{"Animals", "60", "1"}})
	assert.ErrorIs(t, err, protocol.ErrInvalidSettings)
}

func TestDescribe(t *testing.T) {
	record := game.Action{PlayerID: "p2", Type: game.ActionWordGuessed}
	env := protocol.New(protocol.TypeGameAction)
	env.Record = &record
	assert.Equal(t, "p2: wordGuessed", describe(session.Event{Kind: session.EventMessage, Envelope: env}))

	ended := protocol.New(protocol.TypeGameEnded)
	ended.Result = &protocol.Result{Scores: map[string]int{"a": 1, "b": 3, "c": 1}}
	assert.Equal(t, "game over: b=3 a=1 c=1", describe(session.Event{Kind: session.EventMessage, Envelope: ended}))

	assert.Equal(t, "connection lost, reconnecting (attempt 2)", describe(session.Event{Kind: session.EventReconnecting, Attempt: 2}))
	assert.Empty(t, describe(session.Event{Kind: session.EventMessage, Envelope: protocol.New(protocol.TypePong)}))
}
