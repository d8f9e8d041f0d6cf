package room

import (
	"context"
	"errors"
	"testing"

	"word-party/internal/game"
	"word-party/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) Reserve(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockMirror) Store(ctx context.Context, snap protocol.RoomSnapshot) error {
	return m.Called(ctx, snap).Error(0)
}

func (m *mockMirror) Release(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) SaveRoom(ctx context.Context, snap protocol.RoomSnapshot) error {
	return m.Called(ctx, snap).Error(0)
}

func (m *mockArchive) SavePlayer(ctx context.Context, code string, player protocol.PlayerInfo) error {
	return m.Called(ctx, code, player).Error(0)
}

func (m *mockArchive) AppendAction(ctx context.Context, code string, action game.Action) error {
	return m.Called(ctx, code, action).Error(0)
}

func (m *mockArchive) RecordEvent(ctx context.Context, code, eventType string, payload any) error {
	return m.Called(ctx, code, eventType, payload).Error(0)
}

func (m *mockArchive) CloseRoom(ctx context.Context, code, reason string, final game.State) error {
	return m.Called(ctx, code, reason, final).Error(0)
}

func TestCreateRoomSkipsCodesReservedElsewhere(t *testing.T) {
	mirror := &mockMirror{}
	mirror.On("Reserve", mock.Anything, "TAKEN1").Return(false, nil).Once()
	mirror.On("Reserve", mock.Anything, "FRESH1").Return(true, nil).Once()
	mirror.On("Store", mock.Anything, mock.Anything).Return(nil)
	e, _ := newTestEngine(t, Options{Mirror: mirror})
	codes := []string{"TAKEN1", "FRESH1"}
	e.rooms.newCode = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}

	snap, err := e.CreateRoom(context.Background(), "p1", "Ana", mixedSettings())

	require.NoError(t, err)
	assert.Equal(t, "FRESH1", snap.Code)
	mirror.AssertExpectations(t)
}

func TestCreateRoomSkipsLiveCodesWithoutReserving(t *testing.T) {
	mirror := &mockMirror{}
	mirror.On("Reserve", mock.Anything, mock.Anything).Return(true, nil)
	mirror.On("Store", mock.Anything, mock.Anything).Return(nil)
	e, _ := newTestEngine(t, Options{Mirror: mirror})
	first, err := e.CreateRoom(context.Background(), "p1", "Ana", mixedSettings())
	require.NoError(t, err)
	mirror.Calls = nil

	codes := []string{first.Code, "FRESH2"}
	e.rooms.newCode = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}
	second, err := e.CreateRoom(context.Background(), "p2", "Ben", mixedSettings())

	require.NoError(t, err)
	assert.Equal(t, "FRESH2", second.Code)
	mirror.AssertNotCalled(t, "Reserve", mock.Anything, first.Code)
	mirror.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
	mirror.AssertCalled(t, "Reserve", mock.Anything, "FRESH2")
}

func TestMirrorOutageFallsBackToLocalUniqueness(t *testing.T) {
	mirror := &mockMirror{}
	mirror.On("Reserve", mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	mirror.On("Store", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	e, _ := newTestEngine(t, Options{Mirror: mirror})

	snap, err := e.CreateRoom(context.Background(), "p1", "Ana", mixedSettings())

	require.NoError(t, err)
	assert.True(t, e.rooms.Exists(snap.Code))
}

func TestArchiveSeesLifecycle(t *testing.T) {
	archive := &mockArchive{}
	archive.On("SaveRoom", mock.Anything, mock.Anything).Return(nil).Once()
	archive.On("RecordEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	archive.On("SavePlayer", mock.Anything, mock.Anything, mock.MatchedBy(func(p protocol.PlayerInfo) bool {
		return p.ID == "p2"
	})).Return(nil).Once()
	archive.On("AppendAction", mock.Anything, mock.Anything, mock.MatchedBy(func(a game.Action) bool {
		return a.Type == game.ActionGameStarted
	})).Return(nil).Once()
	archive.On("AppendAction", mock.Anything, mock.Anything, mock.MatchedBy(func(a game.Action) bool {
		return a.Type == game.ActionGameEnded
	})).Return(errors.New("db down")).Once()
	archive.On("CloseRoom", mock.Anything, mock.Anything, ReasonEmpty, mock.MatchedBy(func(s game.State) bool {
		return s.Status == game.StatusFinished
	})).Return(nil).Once()
	e, _ := newTestEngine(t, Options{Archive: archive})
	ctx := context.Background()

	code := roomWith(t, e, mixedSettings(), "p1", "p2")
	_, _, err := e.StartGame(ctx, code, "p1")
	require.NoError(t, err)
	_, state, err := e.EndGame(ctx, code, "p2")
	require.NoError(t, err, "archive failures never fail the operation")
	assert.Equal(t, game.StatusFinished, state.Status)
	require.NoError(t, e.LeaveRoom(ctx, code, "p1"))
	require.NoError(t, e.LeaveRoom(ctx, code, "p2"))

	archive.AssertExpectations(t)
}
