package server

import (
	"errors"
	"strings"
	"time"

	"word-party/internal/protocol"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const maxPlayerIDLength = 64

type playerClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// identity resolves who is behind a new connection. With a secret every
// connection must carry a token whose subject is the player id; without one
// the client-supplied id is trusted and generated when absent.
type identity struct {
	secret []byte
}

type caller struct {
	PlayerID string
	Name     string
}

func newIdentity(secret string) identity {
	return identity{secret: []byte(secret)}
}

func (i identity) required() bool {
	return len(i.secret) > 0
}

func (i identity) resolve(token, playerID, name string) (caller, error) {
	playerID = strings.TrimSpace(playerID)
	name = normalizeText(name)
	if !i.required() {
		if playerID == "" {
			playerID = "player_" + uuid.NewString()
		}
		if !validPlayerID(playerID) {
			return caller{}, protocol.Errorf(protocol.CodeUnauthorized, "invalid player id")
		}
		return caller{PlayerID: playerID, Name: name}, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return caller{}, protocol.Errorf(protocol.CodeUnauthorized, "token is required")
	}
	claims := &playerClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return caller{}, protocol.Errorf(protocol.CodeUnauthorized, "invalid token")
	}
	subject := claims.Subject
	if !validPlayerID(subject) {
		return caller{}, protocol.Errorf(protocol.CodeUnauthorized, "token has no player")
	}
	if playerID != "" && playerID != subject {
		return caller{}, protocol.Errorf(protocol.CodeUnauthorized, "token does not match player")
	}
	if name == "" {
		name = normalizeText(claims.Name)
	}
	return caller{PlayerID: subject, Name: name}, nil
}

// IssueToken signs a player token accepted by servers sharing secret.
func IssueToken(secret, playerID, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required")
	}
	if !validPlayerID(playerID) {
		return "", errors.New("invalid player id")
	}
	now := time.Now()
	claims := playerClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  playerID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func validPlayerID(id string) bool {
	if id == "" || len(id) > maxPlayerIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':':
		default:
			return false
		}
	}
	return true
}
