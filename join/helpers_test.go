package join

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skik4/cs2-casual-enjoyer-sub000/presence"
)

// fakePresence scripts the presence collaborator with per-call functions.
// Nil fields fall back to "nothing going on": no token, friend visible and in
// a supported mode, nobody on a server, game running.
type fakePresence struct {
	connectInfo  func(friendID string) (string, error)
	statuses     func(ids []string) ([]presence.FriendStatus, error)
	userServer   func(id string) (string, error)
	friendServer func(id string) (string, error)
	inGame       func(id string) (bool, error)
	inLobby      func(id string) (bool, error)

	connectCalls atomic.Int64
}

func (f *fakePresence) FriendConnectInfo(_ context.Context, friendID string) (string, error) {
	f.connectCalls.Add(1)
	if f.connectInfo == nil {
		return "", nil
	}
	return f.connectInfo(friendID)
}

func (f *fakePresence) FriendStatuses(_ context.Context, ids []string) ([]presence.FriendStatus, error) {
	if f.statuses == nil {
		result := make([]presence.FriendStatus, 0, len(ids))
		for _, id := range ids {
			result = append(result, presence.FriendStatus{ID: id, InSupportedMode: true})
		}
		return result, nil
	}
	return f.statuses(ids)
}

func (f *fakePresence) UserGameServerID(_ context.Context, id string) (string, error) {
	if f.userServer == nil {
		return "", nil
	}
	return f.userServer(id)
}

func (f *fakePresence) FriendGameServerID(_ context.Context, id string) (string, error) {
	if f.friendServer == nil {
		return "", nil
	}
	return f.friendServer(id)
}

func (f *fakePresence) IsInGame(_ context.Context, id string) (bool, error) {
	if f.inGame == nil {
		return true, nil
	}
	return f.inGame(id)
}

func (f *fakePresence) IsInGameAndInLobbyState(_ context.Context, id string) (bool, error) {
	if f.inLobby == nil {
		return true, nil
	}
	return f.inLobby(id)
}

// fakeLauncher records protocol launch requests.
type fakeLauncher struct {
	mu    sync.Mutex
	joins []string // friendID/token pairs
	runs  int
}

func (f *fakeLauncher) JoinFriend(friendID, connectToken string) {
	f.mu.Lock()
	f.joins = append(f.joins, friendID+"/"+connectToken)
	f.mu.Unlock()
}

func (f *fakeLauncher) LaunchGame() {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
}

// deciderFunc adapts a plain func to the LaunchDecider interface.
type deciderFunc func(friendID string) bool

func (f deciderFunc) RequestLaunchDecision(_ context.Context, friendID string) bool {
	return f(friendID)
}

type sinkEvent struct {
	FriendID string
	Status   Status
}

// recordingSink captures emitted status changes for assertions.
type recordingSink struct {
	mu     sync.Mutex
	dots   []sinkEvent
	labels []sinkEvent
}

func (r *recordingSink) OnStatusDotChange(friendID string, status Status) {
	r.mu.Lock()
	r.dots = append(r.dots, sinkEvent{friendID, status})
	r.mu.Unlock()
}

func (r *recordingSink) OnJoinButtonChange(friendID string, status Status) {
	r.mu.Lock()
	r.labels = append(r.labels, sinkEvent{friendID, status})
	r.mu.Unlock()
}

func (r *recordingSink) dotEvents(friendID string) []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Status
	for _, e := range r.dots {
		if e.FriendID == friendID {
			out = append(out, e.Status)
		}
	}
	return out
}

func (r *recordingSink) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dots) + len(r.labels)
}

func (r *recordingSink) lastDot(friendID string) (Status, bool) {
	events := r.dotEvents(friendID)
	if len(events) == 0 {
		return "", false
	}
	return events[len(events)-1], true
}

// testTimings compresses the production clock so loop tests run in tens of
// milliseconds. The refresh tick is kept long on purpose: most sequence
// assertions want transition-driven events only.
func testTimings() Timings {
	return Timings{
		PollInterval:        10 * time.Millisecond,
		MissingTimeout:      80 * time.Millisecond,
		JoinedDisplayWindow: 40 * time.Millisecond,
		UIRefreshTick:       time.Second,
		CancelSettleDelay:   10 * time.Millisecond,
	}
}

// waitFor polls cond until it is true or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
