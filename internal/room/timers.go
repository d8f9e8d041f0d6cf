package room

import "time"

func graceKey(code, playerID string) string {
	return code + "/" + playerID
}

func (e *Engine) startGrace(code, playerID string) {
	key := graceKey(code, playerID)
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	if existing, ok := e.timers[key]; ok {
		existing.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(e.opts.Grace, func() {
		e.timersMu.Lock()
		if e.timers[key] != timer {
			// Cancelled or replaced after this timer had already fired.
			e.timersMu.Unlock()
			return
		}
		delete(e.timers, key)
		e.timersMu.Unlock()
		e.expireGrace(code, playerID)
	})
	e.timers[key] = timer
}

func (e *Engine) cancelGrace(code, playerID string) {
	key := graceKey(code, playerID)
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	if timer, ok := e.timers[key]; ok {
		timer.Stop()
		delete(e.timers, key)
	}
}

// PendingGrace reports how many disconnected players are waiting out their
// grace period.
func (e *Engine) PendingGrace() int {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	return len(e.timers)
}
