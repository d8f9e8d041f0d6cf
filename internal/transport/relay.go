package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"word-party/internal/protocol"

	"github.com/redis/go-redis/v9"
)

// Relay frames travel over Redis pub/sub. Clients publish on RelayUpChannel
// and each player listens on its own down channel. Delivery is ordered per
// publisher but has no acknowledgement, so liveness comes from heartbeats.
const RelayUpChannel = "relay:up"

type RelayKind string

const (
	RelayOpen    RelayKind = "open"
	RelayMessage RelayKind = "message"
	RelayClose   RelayKind = "close"
)

type RelayFrame struct {
	Kind     RelayKind       `json:"kind"`
	PlayerID string          `json:"playerId"`
	Name     string          `json:"name,omitempty"`
	Token    string          `json:"token,omitempty"`
	Envelope json.RawMessage `json:"envelope,omitempty"`
	Code     int             `json:"code,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

func RelayDownChannel(playerID string) string {
	return "relay:down:" + playerID
}

// Relay is the client side of the Redis relay.
type Relay struct {
	rdb *redis.Client

	mu       sync.Mutex
	sub      *redis.PubSub
	playerID string
	closing  bool
	code     int
	reason   string
}

func NewRelay(rdb *redis.Client) *Relay {
	return &Relay{rdb: rdb}
}

func (r *Relay) Connect(ctx context.Context, hello Hello, events Events) error {
	sub := r.rdb.Subscribe(ctx, RelayDownChannel(hello.PlayerID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return protocol.Errorf(protocol.CodeConnectionFailed, "relay subscribe: %v", err)
	}
	r.mu.Lock()
	r.sub = sub
	r.playerID = hello.PlayerID
	r.closing = false
	r.mu.Unlock()

	open := RelayFrame{Kind: RelayOpen, PlayerID: hello.PlayerID, Name: hello.Name, Token: hello.Token}
	if err := r.publish(ctx, open); err != nil {
		_ = sub.Close()
		return protocol.Errorf(protocol.CodeConnectionFailed, "relay open: %v", err)
	}
	go r.readLoop(sub, events)
	return nil
}

func (r *Relay) readLoop(sub *redis.PubSub, events Events) {
	code, reason := CloseAbnormal, "relay subscription ended"
	for msg := range sub.Channel() {
		frame, err := DecodeFrame([]byte(msg.Payload))
		if err != nil {
			events.error(err)
			continue
		}
		if frame.Kind == RelayClose {
			code, reason = frame.Code, frame.Reason
			_ = sub.Close()
			break
		}
		decodeFrame(frame.Envelope, events)
	}
	r.mu.Lock()
	if r.sub == sub {
		r.sub = nil
	}
	if r.closing {
		code, reason = r.code, r.reason
	}
	r.mu.Unlock()
	events.close(code, reason)
}

func (r *Relay) Send(ctx context.Context, env protocol.Envelope) error {
	r.mu.Lock()
	connected := r.sub != nil
	playerID := r.playerID
	r.mu.Unlock()
	if !connected {
		return protocol.ErrConnectionLost
	}
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	if err := r.publish(ctx, RelayFrame{Kind: RelayMessage, PlayerID: playerID, Envelope: data}); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrConnectionLost, err)
	}
	return nil
}

func (r *Relay) Close(code int, reason string) error {
	r.mu.Lock()
	sub := r.sub
	playerID := r.playerID
	r.closing = true
	r.code, r.reason = code, reason
	r.mu.Unlock()
	if sub == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	err := r.publish(ctx, RelayFrame{Kind: RelayClose, PlayerID: playerID, Code: code, Reason: reason})
	if closeErr := sub.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (r *Relay) publish(ctx context.Context, frame RelayFrame) error {
	data, err := EncodeFrame(frame)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, RelayUpChannel, data).Err()
}

func EncodeFrame(frame RelayFrame) ([]byte, error) {
	return json.Marshal(frame)
}

func DecodeFrame(data []byte) (RelayFrame, error) {
	var frame RelayFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, protocol.Errorf(protocol.CodeInvalidMessage, "malformed relay frame: %v", err)
	}
	return frame, nil
}
