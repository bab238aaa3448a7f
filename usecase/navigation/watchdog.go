package navigation

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDelay is how long a not-found screen stays up before the session is cleared.
const DefaultDelay = 5 * time.Second

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type armed struct {
	timer Timer
}

// Watchdog holds at most one pending forced logout per client. Any later navigation by
// the same client must Disarm it so that a session signed in after the not-found
// screen is never cleared by a stale timer.
type Watchdog struct {
	delay  time.Duration
	sched  Scheduler
	logger *zap.Logger

	mu    sync.Mutex
	armed map[string]*armed
}

func NewWatchdog(delay time.Duration, sched Scheduler, logger *zap.Logger) *Watchdog {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if sched == nil {
		sched = wallClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watchdog{
		delay:  delay,
		sched:  sched,
		logger: logger,
		armed:  make(map[string]*armed),
	}
}

func (w *Watchdog) Delay() time.Duration {
	return w.delay
}

// Arm schedules fire for the client, replacing any pending one.
func (w *Watchdog) Arm(clientID string, fire func()) {
	if clientID == "" || fire == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.armed[clientID]; ok {
		prev.timer.Stop()
	}
	entry := &armed{}
	entry.timer = w.sched.AfterFunc(w.delay, func() {
		w.mu.Lock()
		if w.armed[clientID] != entry {
			w.mu.Unlock()
			return
		}
		delete(w.armed, clientID)
		w.mu.Unlock()

		w.logger.Info("not-found timeout reached", zap.String("client_id", clientID))
		fire()
	})
	w.armed[clientID] = entry
}

// Disarm cancels the pending call for the client. It reports whether one was pending.
func (w *Watchdog) Disarm(clientID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry, ok := w.armed[clientID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(w.armed, clientID)
	return true
}

func (w *Watchdog) Armed(clientID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.armed[clientID]
	return ok
}

// Stop cancels every pending call.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, entry := range w.armed {
		entry.timer.Stop()
		delete(w.armed, id)
	}
}
