package protocol

import (
	"crypto/rand"
	"strings"
)

const (
	RoomCodeLength = 6
	roomCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewRoomCode draws a random room code. Ambiguous glyphs (0/O, 1/I) are
// never generated, though any A-Z0-9 code is accepted on input.
func NewRoomCode() string {
	buf := make([]byte, RoomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "AAAAAA"
	}
	for i := range buf {
		buf[i] = roomCodeChars[int(buf[i])%len(roomCodeChars)]
	}
	return string(buf)
}

// NormalizeRoomCode uppercases and trims user input.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether code is six characters of A-Z or 0-9.
func ValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
