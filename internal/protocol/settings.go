package protocol

import "strings"

const (
	DefaultCategory      = "Mixed"
	DefaultRoundDuration = 60
	DefaultMaxPlayers    = 2

	MaxCategoryLength = 32
	MaxRoundDuration  = 600
	MaxPlayersLimit   = 12
)

// Settings are fixed when the room is created.
type Settings struct {
	Category      string `json:"category"`
	RoundDuration int    `json:"roundDuration"`
	MaxPlayers    int    `json:"maxPlayers"`
}

// DefaultSettings mirrors what a client gets without choosing anything.
func DefaultSettings() Settings {
	return Settings{
		Category:      DefaultCategory,
		RoundDuration: DefaultRoundDuration,
		MaxPlayers:    DefaultMaxPlayers,
	}
}

// Normalize fills zero fields with defaults and trims the category.
func (s Settings) Normalize() Settings {
	s.Category = strings.TrimSpace(s.Category)
	if s.Category == "" {
		s.Category = DefaultCategory
	}
	if s.RoundDuration == 0 {
		s.RoundDuration = DefaultRoundDuration
	}
	if s.MaxPlayers == 0 {
		s.MaxPlayers = DefaultMaxPlayers
	}
	return s
}

// Validate checks normalized settings.
func (s Settings) Validate() error {
	switch {
	case s.Category == "":
		return Errorf(CodeInvalidSettings, "category is required")
	case len(s.Category) > MaxCategoryLength:
		return Errorf(CodeInvalidSettings, "category must be %d characters or fewer", MaxCategoryLength)
	case s.RoundDuration <= 0 || s.RoundDuration > MaxRoundDuration:
		return Errorf(CodeInvalidSettings, "round duration must be between 1 and %d seconds", MaxRoundDuration)
	case s.MaxPlayers < 2 || s.MaxPlayers > MaxPlayersLimit:
		return Errorf(CodeInvalidSettings, "max players must be between 2 and %d", MaxPlayersLimit)
	}
	return nil
}
