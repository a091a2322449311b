package service

import (
	"sync"
	"time"
)

const (
	DefaultRateLimitCapacity = 30
	DefaultRateLimitWindow   = time.Minute
)

// Limiter is the admission check run before any inbound message event.
// The in-process implementation below is per-instance state; a distributed
// deployment would swap in a shared-cache-backed one without touching the
// engine.
type Limiter interface {
	Admit(senderID string) bool
}

type senderWindow struct {
	count   int
	resetAt time.Time
}

// WindowLimiter admits up to capacity events per sender per fixed window.
// State is not persisted; a restart clears all limits.
type WindowLimiter struct {
	mu       sync.Mutex
	senders  map[string]*senderWindow
	capacity int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewWindowLimiter(capacity int, window time.Duration) *WindowLimiter {
	if capacity <= 0 {
		capacity = DefaultRateLimitCapacity
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}

	l := &WindowLimiter{
		senders:  make(map[string]*senderWindow),
		capacity: capacity,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

func (l *WindowLimiter) Admit(senderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.senders[senderID]
	if !ok {
		w = &senderWindow{resetAt: now.Add(l.window)}
		l.senders[senderID] = w
	}

	if now.After(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(l.window)
	}

	w.count++
	return w.count <= l.capacity
}

// sweepLoop drops entries for senders idle past window expiry so the map
// stays bounded.
func (l *WindowLimiter) sweepLoop() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *WindowLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, w := range l.senders {
		if now.After(w.resetAt) {
			delete(l.senders, id)
		}
	}
}

func (l *WindowLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
