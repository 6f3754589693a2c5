package join

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skik4/cs2-casual-enjoyer-sub000/launcher"
	"github.com/skik4/cs2-casual-enjoyer-sub000/metrics"
	"github.com/skik4/cs2-casual-enjoyer-sub000/presence"
)

var log = logrus.WithField("component", "join")

// Registry owns the friend-id → session map and enforces the cross-session
// rules: at most one live session per friend, and at most one JOINED session
// globally. All map mutation happens under the registry mutex; the per-friend
// loops otherwise only touch their own session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	presence presence.Client
	launcher launcher.Launcher
	sink     StatusSink
	decider  LaunchDecider
	timings  Timings
	userID   string
}

// NewRegistry creates a registry. userID is the local user's own id, needed
// for the server co-location check. decider may be nil, in which case joins
// start without the "launch the game?" pre-flight.
func NewRegistry(p presence.Client, l launcher.Launcher, sink StatusSink, userID string, t Timings) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		presence: p,
		launcher: l,
		sink:     sink,
		timings:  t,
		userID:   userID,
	}
}

// SetDecider installs the launch-decision collaborator. Must be called before
// the first Start; the UI hub needs the registry first, hence the two-step
// wiring.
func (r *Registry) SetDecider(d LaunchDecider) {
	r.decider = d
}

// Start begins a join attempt for the friend, replacing any prior session.
// The returned session is already WAITING and its loop is running; the only
// error is a precondition failure, in which case the session has been
// cancelled before a single poll ran.
func (r *Registry) Start(friendID string) (*Session, error) {
	r.mu.Lock()
	if old, ok := r.sessions[friendID]; ok {
		r.stopSession(old)
		delete(r.sessions, friendID)
		metrics.ActiveSessions.Dec()
	}
	s := newSession(friendID)
	r.sessions[friendID] = s
	r.mu.Unlock()
	metrics.ActiveSessions.Inc()

	log.WithField("friend_id", friendID).Info("Join session started")
	r.emit(friendID, StatusWaiting)
	go r.refreshLoop(s)

	if friendID == "" || r.userID == "" {
		r.cancelSession(s, false)
		return s, fmt.Errorf("join start requires both a user id and a friend id")
	}

	go r.runLoop(s)
	return s, nil
}

// Cancel stops the friend's session if one exists. Idempotent; unknown ids
// are a no-op. An external cancel never downgrades a JOINED session — that
// one tears itself down after its display window.
func (r *Registry) Cancel(friendID string) {
	r.mu.Lock()
	s := r.sessions[friendID]
	r.mu.Unlock()
	if s == nil {
		return
	}
	r.cancelSession(s, false)
}

// CancelAllExcept cancels every session but the given one. This is the
// tie-break fired the moment one session reaches JOINED.
func (r *Registry) CancelAllExcept(friendID string) {
	r.mu.Lock()
	others := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id != friendID {
			others = append(others, s)
		}
	}
	r.mu.Unlock()

	for _, s := range others {
		r.cancelSession(s, false)
	}
}

// GetAll returns a point-in-time copy of the live sessions' statuses.
func (r *Registry) GetAll() map[string]Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[string]Status, len(r.sessions))
	for id, s := range r.sessions {
		snapshot[id] = s.Status()
	}
	return snapshot
}

// ResetAll cancels and removes every session, timers included. Used when
// credentials change or the friend list is reloaded; nothing is emitted to
// the sink for the dropped ids afterwards.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		r.stopSession(s)
		metrics.ActiveSessions.Dec()
	}
	if len(sessions) > 0 {
		log.Infof("Reset %d join sessions", len(sessions))
	}
}

// stopSession silences a session without any sink traffic: flags it
// cancelled, settles its status and stops every timer it owns. Used for
// replacement and reset, where the successor state is emitted by the caller.
func (r *Registry) stopSession(s *Session) {
	s.cancelled.Store(true)
	s.setStatus(StatusCancelled)
	s.stop()
	s.stopSettleTimer()
}

// cancelSession drives a session to CANCELLED and emits the transition twice,
// immediately and again after the settle delay, to defeat any in-flight UI
// update racing the first emit. force is reserved for a JOINED session's own
// teardown; everyone else bounces off a JOINED session.
func (r *Registry) cancelSession(s *Session, force bool) {
	r.mu.Lock()
	if !force && s.Status() == StatusJoined {
		r.mu.Unlock()
		return
	}
	first := !s.cancelled.Swap(true)
	r.mu.Unlock()

	s.stop()
	s.setStatus(StatusCancelled)
	r.emit(s.FriendID, StatusCancelled)
	if !first {
		return
	}
	metrics.CancellationsTotal.Inc()

	timer := time.AfterFunc(r.timings.CancelSettleDelay, func() {
		r.emit(s.FriendID, StatusCancelled)
		r.remove(s)
	})
	s.setSettleTimer(timer)
}

// declareJoined elects the session as the single global winner. The election
// and the not-already-joined scan happen under the registry mutex, so two
// sessions racing on the same server can never both win.
func (r *Registry) declareJoined(s *Session) bool {
	r.mu.Lock()
	if s.cancelled.Load() {
		r.mu.Unlock()
		return false
	}
	for _, other := range r.sessions {
		if other != s && other.Status() == StatusJoined {
			r.mu.Unlock()
			return false
		}
	}
	s.setStatus(StatusJoined)
	r.mu.Unlock()
	return true
}

// remove drops the session from the map, unless it was already replaced by a
// newer session for the same friend.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	cur, ok := r.sessions[s.FriendID]
	if ok && cur.ID == s.ID {
		delete(r.sessions, s.FriendID)
		metrics.ActiveSessions.Dec()
	}
	r.mu.Unlock()
}

// refreshLoop re-emits the current status at a fixed cadence so the UI heals
// itself after re-renders. Runs until the session context is cancelled.
func (r *Registry) refreshLoop(s *Session) {
	ticker := time.NewTicker(r.timings.UIRefreshTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.cancelled.Load() {
				return
			}
			r.emit(s.FriendID, s.Status())
		}
	}
}

func (r *Registry) emit(friendID string, status Status) {
	if r.sink == nil {
		return
	}
	r.sink.OnStatusDotChange(friendID, status)
	r.sink.OnJoinButtonChange(friendID, status)
}
