package services

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultHighlightTTL is how long a freshly submitted answer stays marked.
const DefaultHighlightTTL = 20 * time.Second

// HighlightState is a snapshot of the tracker for rendering.
type HighlightState struct {
	AnswerID  string    `json:"answer_id,omitempty"`
	Active    bool      `json:"active"`
	Dismissed bool      `json:"dismissed"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// HighlightTracker remembers the newest submitted answer so the wall can mark
// the visitor's own bubble for a short while.
//
// Two inputs activate it: Notify, fired when a kiosk reports a submission, and
// Observe, fed by polling the backend's newest answer. Both ignore the id that
// was seen last, so a dismissed or expired highlight does not come back for
// the same answer. While a dismissal is in effect (until the original expiry)
// polling cannot re-activate; a kiosk notification still can.
type HighlightTracker struct {
	mu        sync.Mutex
	clock     Clock
	ttl       time.Duration
	logger    *zap.Logger
	lastSeen  string
	current   string
	dismissed bool
	expiresAt time.Time
	timer     Timer
	gen       uint64
	onSeen    func(id string)
}

// NewHighlightTracker starts idle. lastSeen is the id persisted by a previous
// run, or "" on a fresh kiosk.
func NewHighlightTracker(clock Clock, ttl time.Duration, lastSeen string, logger *zap.Logger) *HighlightTracker {
	if clock == nil {
		clock = RealClock()
	}
	if ttl <= 0 {
		ttl = DefaultHighlightTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HighlightTracker{clock: clock, ttl: ttl, lastSeen: lastSeen, logger: logger}
}

// OnSeen registers a callback invoked (outside the lock) whenever the
// last-seen id changes.
func (t *HighlightTracker) OnSeen(fn func(id string)) {
	t.mu.Lock()
	t.onSeen = fn
	t.mu.Unlock()
}

// Notify handles a submission event.
func (t *HighlightTracker) Notify(id string) bool {
	return t.activate(id, false)
}

// Observe handles a polled newest-answer id.
func (t *HighlightTracker) Observe(id string) bool {
	return t.activate(id, true)
}

// Prime records id as seen without highlighting it. The poller uses it on its
// first tick so answers stored before the process started are not marked. A
// highlight that is already active is left alone.
func (t *HighlightTracker) Prime(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	if t.current != "" || t.lastSeen == id {
		t.mu.Unlock()
		return
	}
	t.lastSeen = id
	fn := t.onSeen
	t.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

func (t *HighlightTracker) activate(id string, polled bool) bool {
	if id == "" {
		return false
	}
	t.mu.Lock()
	if id == t.lastSeen || (polled && t.dismissed) {
		t.mu.Unlock()
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.lastSeen = id
	t.current = id
	t.dismissed = false
	t.expiresAt = t.clock.Now().Add(t.ttl)
	t.timer = t.clock.AfterFunc(t.ttl, func() { t.expire(gen) })
	fn := t.onSeen
	t.mu.Unlock()

	t.logger.Info("highlight active", zap.String("answer_id", id), zap.Bool("polled", polled))
	if fn != nil {
		fn(id)
	}
	return true
}

func (t *HighlightTracker) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.current = ""
	t.dismissed = false
	t.timer = nil
	t.expiresAt = time.Time{}
}

// Dismiss clears the active highlight on user request.
func (t *HighlightTracker) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == "" {
		return
	}
	t.current = ""
	t.dismissed = true
}

// Current returns the highlighted answer id, if any.
func (t *HighlightTracker) Current() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.current != ""
}

func (t *HighlightTracker) IsDismissed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dismissed
}

// IsMine reports whether answerID is the currently highlighted answer.
func (t *HighlightTracker) IsMine(answerID string) bool {
	if answerID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current == answerID
}

func (t *HighlightTracker) LastSeen() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}

func (t *HighlightTracker) State() HighlightState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return HighlightState{
		AnswerID:  t.current,
		Active:    t.current != "",
		Dismissed: t.dismissed,
		ExpiresAt: t.expiresAt,
	}
}

// Stop cancels the pending expiry timer.
func (t *HighlightTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
