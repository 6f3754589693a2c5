package join

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one friend's tracked join attempt. It is mutated by its own join
// loop (single writer) and by the registry's cross-session cancellation;
// everything mutable sits behind the session mutex or an atomic.
type Session struct {
	FriendID string
	// ID distinguishes a session from its replacement for the same friend,
	// so a superseded session's deferred cleanup cannot touch the successor.
	ID string

	mu              sync.Mutex
	status          Status
	missingSince    time.Time // zero while presence is confirmed
	lastKnownName   string
	lastKnownAvatar string
	settleTimer     *time.Timer

	// cancelled is a one-way flag: once true the loop winds down at its next
	// check, bounded by one poll interval.
	cancelled atomic.Bool

	ctx  context.Context
	stop context.CancelFunc
}

func newSession(friendID string) *Session {
	ctx, stop := context.WithCancel(context.Background())
	return &Session{
		FriendID: friendID,
		ID:       uuid.New().String(),
		status:   StatusWaiting,
		ctx:      ctx,
		stop:     stop,
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Cancelled reports whether the session has been asked to stop.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// markMissing records the first moment presence was lost and freezes the last
// known display fields. Empty incoming values never overwrite a known one:
// the whole point of the freeze is that the UI keeps something to show.
func (s *Session) markMissing(now time.Time, name, avatar string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missingSince.IsZero() {
		s.missingSince = now
	}
	if name != "" {
		s.lastKnownName = name
	}
	if avatar != "" {
		s.lastKnownAvatar = avatar
	}
}

// missingFor returns how long presence has been lost, zero if it is not.
func (s *Session) missingFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missingSince.IsZero() {
		return 0
	}
	return now.Sub(s.missingSince)
}

func (s *Session) clearMissing() {
	s.mu.Lock()
	s.missingSince = time.Time{}
	s.mu.Unlock()
}

// LastKnown returns the frozen display name and avatar, valid while MISSING.
func (s *Session) LastKnown() (name, avatar string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKnownName, s.lastKnownAvatar
}

func (s *Session) setSettleTimer(t *time.Timer) {
	s.mu.Lock()
	s.settleTimer = t
	s.mu.Unlock()
}

func (s *Session) stopSettleTimer() {
	s.mu.Lock()
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
	s.mu.Unlock()
}
