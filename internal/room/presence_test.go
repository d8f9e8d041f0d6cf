package room

import (
	"context"
	"testing"
	"time"

	"word-party/internal/game"
	"word-party/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioReconnectWithinGraceHasNoFlicker(t *testing.T) {
	e, rec := newTestEngine(t, Options{Grace: 150 * time.Millisecond})
	ctx := context.Background()
	code := roomWith(t, e, mixedSettings(), "p1", "p2")
	rec.reset()

	e.Disconnect(code, "p1")
	snap, err := e.Snapshot(code)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOffline, snap.Players[0].Status)

	_, rejoined, err := e.JoinRoom(ctx, code, "p1", "Ana")
	require.NoError(t, err)
	assert.True(t, rejoined)

	time.Sleep(300 * time.Millisecond)

	snap, err = e.Snapshot(code)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)
	assert.Equal(t, "p1", snap.HostID)
	assert.Equal(t, protocol.StatusOnline, snap.Players[0].Status)
	assert.Empty(t, rec.ofType(protocol.TypePlayerLeft))
	assert.Empty(t, rec.ofType(protocol.TypePlayerJoined))
	assert.Empty(t, rec.ofType(protocol.TypeHostChanged))
	assert.Len(t, rec.ofType(protocol.TypePlayerUpdated), 2, "offline then online")
	assert.Zero(t, e.PendingGrace())
}

func TestGraceExpiryLeavesAndTransfersHost(t *testing.T) {
	e, rec := newTestEngine(t, Options{Grace: 20 * time.Millisecond})
	code := roomWith(t, e, mixedSettings(), "p1", "p2")
	rec.reset()

	e.Disconnect(code, "p1")

	require.Eventually(t, func() bool {
		return len(rec.ofType(protocol.TypeHostChanged)) == 1
	}, time.Second, 10*time.Millisecond)
	left := rec.ofType(protocol.TypePlayerLeft)
	require.Len(t, left, 1)
	assert.Equal(t, ReasonGrace, left[0].env.Reason)
	assert.Equal(t, []string{"p2"}, hostsIn(t, e, code))
}

func TestGraceExpiryOfLastPlayerDeletesRoom(t *testing.T) {
	e, _ := newTestEngine(t, Options{Grace: 10 * time.Millisecond})
	code := roomWith(t, e, mixedSettings(), "p1")

	e.Disconnect(code, "p1")

	require.Eventually(t, func() bool {
		return !e.rooms.Exists(code)
	}, time.Second, 5*time.Millisecond)
}

func TestFiredGraceTimerIgnoredAfterRejoinAndDropAgain(t *testing.T) {
	e, rec := newTestEngine(t, Options{Grace: 30 * time.Millisecond})
	code := roomWith(t, e, mixedSettings(), "p1", "p2")
	rec.reset()

	e.Disconnect(code, "p2")
	key := graceKey(code, "p2")

	// The first timer fires while the lock is held, as if the player had
	// rejoined and dropped again before its callback ran.
	e.timersMu.Lock()
	time.Sleep(60 * time.Millisecond)
	e.timers[key].Stop()
	replacement := time.AfterFunc(time.Hour, func() {})
	t.Cleanup(func() { replacement.Stop() })
	e.timers[key] = replacement
	e.timersMu.Unlock()

	time.Sleep(50 * time.Millisecond)

	snap, err := e.Snapshot(code)
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)
	assert.Empty(t, rec.ofType(protocol.TypePlayerLeft))
	assert.Equal(t, 1, e.PendingGrace())

	e.cancelGrace(code, "p2")
	assert.Zero(t, e.PendingGrace())
}

func TestReconnectRestoresScoresFromLog(t *testing.T) {
	e, _ := newTestEngine(t, Options{Grace: time.Minute})
	ctx := context.Background()
	code := roomWith(t, e, mixedSettings(), "p1", "p2")
	_, _, err := e.StartGame(ctx, code, "p1")
	require.NoError(t, err)
	_, _, err = e.PostAction(ctx, code, "p2", game.ActionWordGuessed, []byte(`{"word":"owl","points":2}`))
	require.NoError(t, err)

	e.Disconnect(code, "p2")
	_, _, err = e.PostAction(ctx, code, "p1", game.ActionWordGuessed, []byte(`{"word":"elk"}`))
	require.NoError(t, err)

	snap, rejoined, err := e.JoinRoom(ctx, code, "p2", "Ben")
	require.NoError(t, err)
	require.True(t, rejoined)

	replayed := game.Replay(snap.Actions).State()
	assert.Equal(t, map[string]int{"p1": 1, "p2": 2}, replayed.Scores)
	assert.Equal(t, snap.State.Scores, replayed.Scores)
}

func TestSweepClosesIdleRoomsWithPlayers(t *testing.T) {
	clk := newClock()
	e, rec := newTestEngine(t, Options{Now: clk.Now, RoomTTL: time.Hour, FinishedTTL: 5 * time.Minute})
	ctx := context.Background()
	idle := roomWith(t, e, mixedSettings(), "p1", "p2")

	clk.Advance(40 * time.Minute)
	busy := roomWith(t, e, mixedSettings(), "p3", "p4")
	clk.Advance(30 * time.Minute)
	e.Touch(busy, "p3")

	assert.Equal(t, 1, e.Sweep(ctx))
	assert.False(t, e.rooms.Exists(idle))
	assert.True(t, e.rooms.Exists(busy))

	closed := rec.ofType(protocol.TypeRoomClosed)
	require.Len(t, closed, 2)
	assert.Equal(t, ReasonIdle, closed[0].env.Reason)
	_, ok := e.RoomOf("p1")
	assert.False(t, ok)
}

func TestSweepClosesFinishedRoomsSooner(t *testing.T) {
	clk := newClock()
	e, _ := newTestEngine(t, Options{Now: clk.Now, RoomTTL: time.Hour, FinishedTTL: 5 * time.Minute})
	ctx := context.Background()
	code := roomWith(t, e, mixedSettings(), "p1", "p2")
	_, _, err := e.StartGame(ctx, code, "p1")
	require.NoError(t, err)
	_, _, err = e.EndGame(ctx, code, "p1")
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	assert.Zero(t, e.Sweep(ctx))

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, e.Sweep(ctx))
	assert.False(t, e.rooms.Exists(code))
}

func TestStatsAndSummaries(t *testing.T) {
	e, _ := newTestEngine(t, Options{Grace: time.Minute})
	ctx := context.Background()
	playing := roomWith(t, e, mixedSettings(), "p1", "p2")
	roomWith(t, e, mixedSettings(), "p3")
	_, _, err := e.StartGame(ctx, playing, "p1")
	require.NoError(t, err)
	e.Disconnect(playing, "p2")

	stats := e.Stats()
	assert.Equal(t, Stats{Rooms: 2, Players: 3, Online: 2, ActiveGames: 1}, stats)

	summaries := e.Summaries()
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Nil(t, s.Actions)
	}
}
