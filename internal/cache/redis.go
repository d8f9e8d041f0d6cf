package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"word-party/internal/protocol"

	"github.com/redis/go-redis/v9"
)

const (
	codePrefix     = "room:code:"
	snapshotPrefix = "room:snapshot:"
)

// NewClient connects to Redis and checks the connection with a ping.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Mirror shares room codes and snapshots between server processes. A code
// is reserved with SETNX so two processes never hand out the same one.
type Mirror struct {
	rdb   *redis.Client
	owner string
	ttl   time.Duration
}

func NewMirror(rdb *redis.Client, owner string, ttl time.Duration) *Mirror {
	return &Mirror{rdb: rdb, owner: owner, ttl: ttl}
}

func (m *Mirror) Reserve(ctx context.Context, code string) (bool, error) {
	ok, err := m.rdb.SetNX(ctx, codeKey(code), m.owner, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve room code: %w", err)
	}
	return ok, nil
}

// Store writes the snapshot and refreshes the code reservation.
func (m *Mirror) Store(ctx context.Context, snap protocol.RoomSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	pipe := m.rdb.TxPipeline()
	pipe.Set(ctx, snapshotKey(snap.Code), data, m.ttl)
	pipe.Expire(ctx, codeKey(snap.Code), m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store room snapshot: %w", err)
	}
	return nil
}

func (m *Mirror) Release(ctx context.Context, code string) error {
	if err := m.rdb.Del(ctx, codeKey(code), snapshotKey(code)).Err(); err != nil {
		return fmt.Errorf("release room code: %w", err)
	}
	return nil
}

// Load returns the last mirrored snapshot of a room, which may be owned by
// another process.
func (m *Mirror) Load(ctx context.Context, code string) (protocol.RoomSnapshot, bool, error) {
	var snap protocol.RoomSnapshot
	data, err := m.rdb.Get(ctx, snapshotKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("load room snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false, fmt.Errorf("decode room snapshot: %w", err)
	}
	return snap, true, nil
}

// Owner reports which process holds a code.
func (m *Mirror) Owner(ctx context.Context, code string) (string, error) {
	owner, err := m.rdb.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return owner, err
}

func codeKey(code string) string {
	return codePrefix + code
}

func snapshotKey(code string) string {
	return snapshotPrefix + code
}
