package room

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"word-party/internal/protocol"
)

const maxCodeAttempts = 16

var errNoRoomCode = errors.New("could not allocate a room code")

// Registry maps room codes to live rooms. Every mutation runs under a single
// lock, so two requests racing for the last slot are serialized.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	members map[string]string
	newCode func() string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*Room),
		members: make(map[string]string),
		newCode: protocol.NewRoomCode,
	}
}

// Create assigns a fresh code to room and registers it. reserve, when set,
// is consulted before a code is taken so other processes can veto it. Codes
// already live here are skipped without consulting reserve.
func (r *Registry) Create(room *Room, reserve func(code string) bool) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := r.newCode()
		if r.Exists(code) {
			continue
		}
		if reserve != nil && !reserve(code) {
			continue
		}
		r.mu.Lock()
		if _, taken := r.rooms[code]; taken {
			r.mu.Unlock()
			continue
		}
		room.Code = code
		r.rooms[code] = room
		r.syncMembers(room)
		r.mu.Unlock()
		return code, nil
	}
	return "", errNoRoomCode
}

// Update runs fn with exclusive access to the room. Rooms left without
// players, or closed by fn, are removed before the lock is released.
// The returned bool reports whether the room was removed.
func (r *Registry) Update(code string, fn func(room *Room) error) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		return false, protocol.Errorf(protocol.CodeRoomNotFound, "room %s not found", code)
	}
	err := fn(room)
	if room.closed || len(room.Players) == 0 {
		r.remove(room)
		return true, err
	}
	r.syncMembers(room)
	return false, err
}

// View runs fn with read access to the room.
func (r *Registry) View(code string, fn func(room *Room)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[code]
	if !ok {
		return protocol.Errorf(protocol.CodeRoomNotFound, "room %s not found", code)
	}
	fn(room)
	return nil
}

// Each visits every room in code order.
func (r *Registry) Each(fn func(room *Room)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fn(r.rooms[code])
	}
}

func (r *Registry) Exists(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[code]
	return ok
}

// RoomOf returns the code of the room playerID belongs to.
func (r *Registry) RoomOf(playerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.members[playerID]
	return code, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) remove(room *Room) {
	delete(r.rooms, room.Code)
	for playerID, code := range r.members {
		if code == room.Code {
			delete(r.members, playerID)
		}
	}
}

func (r *Registry) syncMembers(room *Room) {
	for playerID, code := range r.members {
		if code != room.Code {
			continue
		}
		if _, ok := room.Players[playerID]; !ok {
			delete(r.members, playerID)
		}
	}
	for playerID := range room.Players {
		r.members[playerID] = room.Code
	}
}

func actionID(code string, seq int64) string {
	return fmt.Sprintf("%s-%d", code, seq)
}
