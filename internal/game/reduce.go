package game

import "github.com/rs/zerolog/log"

// Reduce applies a single action to prior and returns the resulting state.
// prior is never modified. Actions that do not fit the current status, carry
// a malformed payload or have an unknown type leave the state unchanged.
func Reduce(prior State, a Action) State {
	next := prior.Clone()
	switch a.Type {
	case ActionGameStarted:
		if prior.Status != StatusWaiting {
			return skip(prior, a, "game not waiting")
		}
		payload, err := a.startPayload()
		if err != nil {
			return skip(prior, a, "malformed payload")
		}
		next.Status = StatusPlaying
		next.Scores = make(map[string]int, len(payload.Players))
		for _, id := range payload.Players {
			next.Scores[id] = 0
		}
		next.Ready = nil
		next.CurrentRound = 1
		next.WordsGuessed = []string{}
		next.WordsSkipped = []string{}
		next.StartedAt = a.Timestamp
	case ActionWordGuessed:
		if prior.Status != StatusPlaying {
			return skip(prior, a, "game not playing")
		}
		payload, err := a.wordPayload()
		if err != nil {
			return skip(prior, a, "malformed payload")
		}
		points := payload.Points
		if points == 0 {
			points = DefaultPoints
		}
		next.Scores[a.PlayerID] += points
		if payload.Word != "" {
			next.WordsGuessed = append(next.WordsGuessed, payload.Word)
		}
	case ActionWordSkipped:
		if prior.Status != StatusPlaying {
			return skip(prior, a, "game not playing")
		}
		payload, err := a.wordPayload()
		if err != nil {
			return skip(prior, a, "malformed payload")
		}
		if payload.Word != "" {
			next.WordsSkipped = append(next.WordsSkipped, payload.Word)
		}
	case ActionGamePaused:
		if prior.Status != StatusPlaying {
			return skip(prior, a, "game not playing")
		}
		next.Status = StatusPaused
	case ActionGameResumed:
		if prior.Status != StatusPaused {
			return skip(prior, a, "game not paused")
		}
		next.Status = StatusPlaying
	case ActionGameEnded:
		if !prior.Active() {
			return skip(prior, a, "game not active")
		}
		next.Status = StatusFinished
		next.EndedAt = a.Timestamp
	case ActionPlayerReady:
		if prior.Status != StatusWaiting {
			return skip(prior, a, "game not waiting")
		}
		if next.Ready == nil {
			next.Ready = make(map[string]bool)
		}
		next.Ready[a.PlayerID] = true
	default:
		return skip(prior, a, "unknown action type")
	}
	return next
}

func skip(prior State, a Action, reason string) State {
	log.Debug().
		Str("action_id", a.ID).
		Str("type", string(a.Type)).
		Str("player", a.PlayerID).
		Str("reason", reason).
		Msg("action skipped")
	return prior
}
