package session

import (
	"context"
	"strings"

	"word-party/internal/protocol"

	"github.com/google/uuid"
)

const (
	keyPlayerID   = "playerId"
	keyPlayerName = "playerName"
)

// PlatformUser is what a hosting platform knows about the user.
type PlatformUser struct {
	ID    string
	Name  string
	Token string
}

// IdentityProvider returns the platform user, or nil when the client runs
// outside a platform.
type IdentityProvider interface {
	User(ctx context.Context) (*PlatformUser, error)
}

// StaticUser is an IdentityProvider for a user known up front.
type StaticUser PlatformUser

func (u StaticUser) User(context.Context) (*PlatformUser, error) {
	if u.ID == "" {
		return nil, nil
	}
	user := PlatformUser(u)
	return &user, nil
}

type Identity struct {
	PlayerID string
	Name     string
	Token    string
}

// ResolveIdentity prefers the platform id. Otherwise it reuses the id cached
// in kv, generating and caching one on first run. A name cached in kv wins
// over the platform's so a rename sticks.
func ResolveIdentity(ctx context.Context, provider IdentityProvider, kv KV) (Identity, error) {
	var id Identity
	if provider != nil {
		user, err := provider.User(ctx)
		if err != nil {
			return Identity{}, err
		}
		if user != nil && user.ID != "" {
			id = Identity{PlayerID: "tg_" + user.ID, Name: strings.TrimSpace(user.Name), Token: user.Token}
		}
	}
	if kv == nil {
		kv = NewMemoryKV()
	}
	if id.PlayerID == "" {
		cached, ok, err := kv.Get(keyPlayerID)
		if err != nil {
			return Identity{}, err
		}
		if !ok || cached == "" {
			cached = "player_" + uuid.NewString()
			if err := kv.Set(keyPlayerID, cached); err != nil {
				return Identity{}, err
			}
		}
		id.PlayerID = cached
	}
	name, ok, err := kv.Get(keyPlayerName)
	if err != nil {
		return Identity{}, err
	}
	if ok && name != "" {
		id.Name = name
	}
	if id.Name == "" {
		id.Name = protocol.DefaultPlayerName()
		if err := kv.Set(keyPlayerName, id.Name); err != nil {
			return Identity{}, err
		}
	}
	return id, nil
}
