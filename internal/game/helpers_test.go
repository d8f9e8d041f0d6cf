package game

import (
	"encoding/json"
	"fmt"
	"testing"
)

func action(t *testing.T, seq int64, typ ActionType, player string, payload any) Action {
	t.Helper()
	a := Action{
		ID:        fmt.Sprintf("ROOM01-%d", seq),
		Seq:       seq,
		Type:      typ,
		PlayerID:  player,
		Timestamp: 1_700_000_000_000 + seq,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		a.Payload = raw
	}
	return a
}

func started(t *testing.T, seq int64, host string, players ...string) Action {
	t.Helper()
	return action(t, seq, ActionGameStarted, host, StartPayload{Players: players})
}

func guessed(t *testing.T, seq int64, player, word string, points int) Action {
	t.Helper()
	return action(t, seq, ActionWordGuessed, player, WordPayload{Word: word, Points: points})
}
