package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"word-party/internal/game"
	"word-party/internal/protocol"
	"word-party/internal/session"
)

const helpText = `commands:
  create [category] [seconds] [players]   create a room and become host
  join CODE                               join or resume a room
  leave                                   leave the current room
  start                                   start the game (host)
  guess WORD [points]                     score a guessed word
  skip WORD                               skip a word
  word WORD [seconds]                     push the current word and timer (host)
  pause | resume                          pause or resume the game (host)
  ready                                   mark yourself ready
  end                                     end the game
  name NAME                               change your display name
  room                                    show the room and scores
  ping                                    round trip to the server
  quit                                    leave and exit`

type command struct {
	name string
	args []string
}

func parseCommand(line string) (command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, false
	}
	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

func (c command) arg(i int) string {
	if i < len(c.args) {
		return c.args[i]
	}
	return ""
}

func (c command) intArg(i, fallback int) (int, error) {
	raw := c.arg(i)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", raw)
	}
	return value, nil
}

// settingsFrom builds room settings from create's optional arguments.
func settingsFrom(c command) (protocol.Settings, error) {
	settings := protocol.DefaultSettings()
	if category := c.arg(0); category != "" {
		settings.Category = category
	}
	var err error
	if settings.RoundDuration, err = c.intArg(1, settings.RoundDuration); err != nil {
		return settings, err
	}
	if settings.MaxPlayers, err = c.intArg(2, settings.MaxPlayers); err != nil {
		return settings, err
	}
	return settings, settings.Validate()
}

// run executes one input line and reports whether the client should exit.
func run(ctx context.Context, m *session.Manager, line string) bool {
	c, ok := parseCommand(line)
	if !ok {
		return false
	}
	var err error
	switch c.name {
	case "help", "?":
		fmt.Println(helpText)
	case "quit", "exit":
		return true
	case "create":
		var settings protocol.Settings
		if settings, err = settingsFrom(c); err != nil {
			break
		}
		var snap protocol.RoomSnapshot
		if snap, err = m.CreateRoom(ctx, settings); err == nil {
			fmt.Printf("room %s created (%s, %ds, %d players)\n", snap.Code, snap.Settings.Category, snap.Settings.RoundDuration, snap.Settings.MaxPlayers)
		}
	case "join":
		var snap protocol.RoomSnapshot
		if snap, err = m.JoinRoom(ctx, c.arg(0)); err == nil {
			fmt.Printf("joined room %s with %d players\n", snap.Code, len(snap.Players))
		}
	case "leave":
		if err = m.LeaveRoom(ctx); err == nil {
			fmt.Println("left the room")
		}
	case "start":
		var state game.State
		if state, err = m.StartGame(ctx); err == nil {
			fmt.Printf("game started, word: %s\n", state.CurrentWord)
		}
	case "guess":
		var points int
		if points, err = c.intArg(1, 0); err == nil {
			_, err = m.Guess(ctx, c.arg(0), points)
		}
	case "skip":
		_, err = m.Skip(ctx, c.arg(0))
	case "word":
		word := c.arg(0)
		patch := game.Ephemeral{CurrentWord: &word}
		var left int
		if left, err = c.intArg(1, -1); err == nil {
			if left >= 0 {
				patch.TimeLeft = &left
			}
			_, err = m.PushState(ctx, patch)
		}
	case "pause":
		_, err = m.Pause(ctx)
	case "resume":
		_, err = m.Resume(ctx)
	case "ready":
		_, err = m.Ready(ctx)
	case "end":
		var result *protocol.Result
		if result, err = m.EndGame(ctx); err == nil && result != nil {
			fmt.Printf("game over, winners: %s\n", strings.Join(result.Winners, ", "))
		}
	case "name":
		err = m.SetName(ctx, strings.Join(c.args, " "))
	case "room":
		printRoom(m)
	case "ping":
		err = m.Ping(ctx)
		if err == nil {
			fmt.Println("pong")
		}
	default:
		fmt.Printf("unknown command %q, type help\n", c.name)
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
	return false
}

func printRoom(m *session.Manager) {
	room, ok := m.Room()
	if !ok {
		fmt.Println("not in a room")
		return
	}
	view := m.View()
	fmt.Printf("room %s  status %s  round %d  word %q  time %ds\n", room.Code, view.Status, view.CurrentRound, view.CurrentWord, view.TimeLeft)
	for _, p := range room.Players {
		host := ""
		if p.IsHost {
			host = " (host)"
		}
		fmt.Printf("  %-20s %-8s %3d%s\n", p.Name, p.Status, view.Scores[p.ID], host)
	}
}

func describe(ev session.Event) string {
	switch ev.Kind {
	case session.EventReconnecting:
		return fmt.Sprintf("connection lost, reconnecting (attempt %d)", ev.Attempt)
	case session.EventReconnected:
		return "reconnected"
	case session.EventRoomLost:
		return fmt.Sprintf("could not resume room: %v", ev.Err)
	case session.EventDisconnected:
		if ev.Err != nil {
			return fmt.Sprintf("disconnected: %v", ev.Err)
		}
		return "disconnected"
	case session.EventFatal:
		return fmt.Sprintf("fatal: %v", ev.Err)
	}

	env := ev.Envelope
	switch env.Type {
	case protocol.TypePlayerJoined:
		if env.Player != nil {
			return fmt.Sprintf("%s joined", env.Player.Name)
		}
	case protocol.TypePlayerLeft:
		return fmt.Sprintf("%s left (%s)", env.PlayerID, env.Reason)
	case protocol.TypePlayerUpdated:
		if env.Player != nil {
			return fmt.Sprintf("%s is %s", env.Player.Name, env.Player.Status)
		}
	case protocol.TypeHostChanged:
		return fmt.Sprintf("%s is now host", env.NewHostID)
	case protocol.TypeGameStarted:
		return "game started"
	case protocol.TypeGameAction:
		if env.Record != nil {
			return fmt.Sprintf("%s: %s", env.Record.PlayerID, env.Record.Type)
		}
	case protocol.TypeGameStateUpdate:
		if state, ok := env.GameState(); ok {
			return fmt.Sprintf("word %q, %ds left", state.CurrentWord, state.TimeLeft)
		}
	case protocol.TypeGameEnded:
		if env.Result != nil {
			return "game over: " + formatScores(env.Result.Scores)
		}
	case protocol.TypeRoomClosed:
		return fmt.Sprintf("room closed (%s)", env.Reason)
	}
	return ""
}

func formatScores(scores map[string]int) string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s=%d", id, scores[id])
	}
	return strings.Join(parts, " ")
}
