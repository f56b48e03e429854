package call

import (
	"sync"
	"time"
)

// IdleTimer fires onIdle for a call once it has seen no activity for the
// timeout.
type IdleTimer struct {
	timeout time.Duration
	mu      sync.Mutex
	timers  map[string]*time.Timer
	onIdle  func(callID string)
}

func NewIdleTimer(timeout time.Duration, onIdle func(callID string)) *IdleTimer {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &IdleTimer{
		timeout: timeout,
		timers:  make(map[string]*time.Timer),
		onIdle:  onIdle,
	}
}

// Touch restarts the call's countdown.
func (d *IdleTimer) Touch(callID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[callID]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.timeout, func() {
		d.mu.Lock()
		if d.timers[callID] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.timers, callID)
		callback := d.onIdle
		d.mu.Unlock()

		if callback != nil {
			callback(callID)
		}
	})
	d.timers[callID] = timer
}

func (d *IdleTimer) Stop(callID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[callID]; ok {
		t.Stop()
		delete(d.timers, callID)
	}
}

func (d *IdleTimer) StopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}
