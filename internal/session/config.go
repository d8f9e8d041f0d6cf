package session

import "time"

type Config struct {
	ConnectTimeout time.Duration
	Heartbeat      time.Duration
	RequestTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	MaxAttempts    int
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		Heartbeat:      30 * time.Second,
		RequestTimeout: 10 * time.Second,
		BackoffBase:    time.Second,
		BackoffMax:     30 * time.Second,
		MaxAttempts:    5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = d.Heartbeat
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// Backoff is the wait before reconnect attempt n, counting from zero:
// min(base * 2^n, max).
func (c Config) Backoff(n int) time.Duration {
	wait := c.BackoffBase
	for i := 0; i < n; i++ {
		wait *= 2
		if wait >= c.BackoffMax {
			return c.BackoffMax
		}
	}
	if wait > c.BackoffMax {
		return c.BackoffMax
	}
	return wait
}
