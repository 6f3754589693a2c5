package join

import (
	"sync"
	"time"

	"github.com/skik4/cs2-casual-enjoyer-sub000/metrics"
	"github.com/skik4/cs2-casual-enjoyer-sub000/presence"
)

// runLoop drives one session from WAITING to a terminal status. Every remote
// call failure inside the loop is demoted to a logged warning followed by the
// normal sleep: a flaky presence API must never kill a join attempt.
func (r *Registry) runLoop(s *Session) {
	defer r.finalize(s)

	if !r.confirmGameRunning(s) {
		return
	}

	for !s.cancelled.Load() {
		token, err := r.presence.FriendConnectInfo(s.ctx, s.FriendID)
		if err != nil {
			log.WithField("friend_id", s.FriendID).Warnf("Connect info poll failed: %v", err)
			r.sleep(s)
			continue
		}

		if token == "" {
			if r.handleNoToken(s) {
				return
			}
			r.sleep(s)
			continue
		}

		s.clearMissing()
		s.setStatus(StatusConnecting)
		r.emit(s.FriendID, StatusConnecting)
		// Fire-and-forget: the launcher logs its own failures and the loop
		// keeps polling in case the user connects manually.
		r.launcher.JoinFriend(s.FriendID, token)

		r.sleep(s)
		if s.cancelled.Load() {
			return
		}

		if r.checkJoined(s) {
			return
		}
		r.sleep(s)
	}
}

// confirmGameRunning is the pre-loop gate: when the game is not running, the
// launch decision is requested from the UI. A negative answer aborts the join
// before the first poll.
func (r *Registry) confirmGameRunning(s *Session) bool {
	if r.decider == nil {
		return true
	}
	running, err := r.presence.IsInGame(s.ctx, r.userID)
	if err != nil {
		// Assume running; the loop will fail towards MISSING if it is not.
		log.Warnf("Game-running probe failed: %v", err)
		return true
	}
	if running {
		return true
	}
	if !r.decider.RequestLaunchDecision(s.ctx, s.FriendID) {
		log.WithField("friend_id", s.FriendID).Info("Launch declined, aborting join")
		r.cancelSession(s, false)
		return false
	}
	return true
}

// handleNoToken covers the "friend has no joinable match right now" branch:
// either the friend merely rotated maps (stay WAITING), or they left the
// supported modes entirely (MISSING, with a hard timeout). Returns true when
// the session was cancelled by the missing timeout.
func (r *Registry) handleNoToken(s *Session) bool {
	statuses, err := r.presence.FriendStatuses(s.ctx, []string{s.FriendID})
	if err != nil {
		log.WithField("friend_id", s.FriendID).Warnf("Status poll failed: %v", err)
		return false
	}

	var found *presence.FriendStatus
	for i := range statuses {
		if statuses[i].ID == s.FriendID {
			found = &statuses[i]
			break
		}
	}

	if found != nil && found.InSupportedMode {
		// Mode resumed: presence is confirmed again, the missing clock resets.
		s.clearMissing()
		if s.Status() != StatusWaiting {
			s.setStatus(StatusWaiting)
			r.emit(s.FriendID, StatusWaiting)
		}
		return false
	}

	now := time.Now()
	if found != nil {
		s.markMissing(now, found.DisplayName, found.AvatarURL)
	} else {
		s.markMissing(now, "", "")
	}
	// The transition is emitted once; the refresh tick re-emits it while the
	// friend stays missing.
	if s.Status() != StatusMissing {
		s.setStatus(StatusMissing)
		r.emit(s.FriendID, StatusMissing)
	}

	if s.missingFor(now) > r.timings.MissingTimeout {
		log.WithField("friend_id", s.FriendID).Info("Friend missing past timeout, giving up")
		metrics.MissingTimeoutsTotal.Inc()
		r.cancelSession(s, false)
		return true
	}
	return false
}

// checkJoined queries both server ids concurrently and, on a match, walks the
// session through the JOINED endgame: election, sibling cancellation, the
// display window, and its own teardown. Returns true when the loop is done.
func (r *Registry) checkJoined(s *Session) bool {
	var (
		wg         sync.WaitGroup
		userServer string
		userErr    error
		friendSrv  string
		friendErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		userServer, userErr = r.presence.UserGameServerID(s.ctx, r.userID)
	}()
	go func() {
		defer wg.Done()
		friendSrv, friendErr = r.presence.FriendGameServerID(s.ctx, s.FriendID)
	}()
	wg.Wait()

	if userErr != nil || friendErr != nil {
		log.WithField("friend_id", s.FriendID).Warnf("Server id poll failed: user=%v friend=%v", userErr, friendErr)
		return false
	}
	if userServer == "" || userServer != friendSrv {
		return false
	}

	if !r.declareJoined(s) {
		// Lost the race to a sibling; this loop is done either way.
		return true
	}

	log.WithField("friend_id", s.FriendID).Info("Join confirmed by server co-location")
	metrics.JoinsTotal.Inc()
	r.emit(s.FriendID, StatusJoined)
	r.CancelAllExcept(s.FriendID)

	// Fixed linger so the UI shows the success; deliberately not cancellable.
	time.Sleep(r.timings.JoinedDisplayWindow)
	r.cancelSession(s, true)
	return true
}

// finalize guarantees the terminal-state invariant: no loop exit leaves a
// session in a non-terminal status.
func (r *Registry) finalize(s *Session) {
	if s.Status() != StatusJoined && !s.cancelled.Load() {
		r.cancelSession(s, false)
	}
}

// sleep pauses for one poll interval, waking early on cancellation.
func (r *Registry) sleep(s *Session) {
	select {
	case <-s.ctx.Done():
	case <-time.After(r.timings.PollInterval):
	}
}
