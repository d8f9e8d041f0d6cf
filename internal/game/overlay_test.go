package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlayViewFoldsPendingWithoutTouchingBase(t *testing.T) {
	base := Replay([]Action{started(t, 1, "p1", "p1", "p2")}).State()
	o := NewOverlay(base)

	o.Push(guessed(t, 100, "p1", "apple", 2))

	assert.Equal(t, 2, o.View().Scores["p1"])
	assert.Equal(t, 0, o.Base().Scores["p1"])
	assert.Equal(t, 1, o.Pending())
}

func TestOverlayResetDiscardsSpeculation(t *testing.T) {
	base := Replay([]Action{started(t, 1, "p1", "p1", "p2")}).State()
	o := NewOverlay(base)
	o.Push(guessed(t, 100, "p1", "apple", 5))

	authoritative := Reduce(base, guessed(t, 2, "p1", "apple", 1))
	o.Reset(authoritative)

	assert.Equal(t, 0, o.Pending())
	assert.Equal(t, 1, o.View().Scores["p1"])
}
