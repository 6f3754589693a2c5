// Package monitor bridges "the game is not running" into "the game is
// running and the user is past the pre-game lobby", by launching the client
// and polling presence until the stronger predicate holds. It never touches
// the join loops' own polling.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skik4/cs2-casual-enjoyer-sub000/launcher"
	"github.com/skik4/cs2-casual-enjoyer-sub000/presence"
)

var log = logrus.WithField("component", "monitor")

// Progress strings reported by LaunchAndWaitForLobby.
const ProgressLaunching = "launching"

// Monitor owns the single allowed launch-poll task. Starting a second one
// while the first is active fails fast instead of doubling the poll traffic.
type Monitor struct {
	presence presence.Client
	launcher launcher.Launcher
	userID   string
	interval time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc // non-nil while a poll task is active
}

func New(p presence.Client, l launcher.Launcher, userID string, interval time.Duration) *Monitor {
	return &Monitor{
		presence: p,
		launcher: l,
		userID:   userID,
		interval: interval,
	}
}

// IsRunning reports whether the game process is active. Probe errors are
// logged and read as "not running".
func (m *Monitor) IsRunning(ctx context.Context) bool {
	running, err := m.presence.IsInGame(ctx, m.userID)
	if err != nil {
		log.Warnf("Game-running probe failed: %v", err)
		return false
	}
	return running
}

// IsRunningAndInLobby is the stronger check: running and past the pre-game
// lobby. The exact classification belongs to the presence client.
func (m *Monitor) IsRunningAndInLobby(ctx context.Context) bool {
	ok, err := m.presence.IsInGameAndInLobbyState(ctx, m.userID)
	if err != nil {
		log.Warnf("Lobby probe failed: %v", err)
		return false
	}
	return ok
}

// Launch fires the plain-launch protocol URI. Fire-and-forget.
func (m *Monitor) Launch() {
	m.launcher.LaunchGame()
}

// StartMonitor begins polling IsRunningAndInLobby at the given interval,
// invoking onChange with the result of every probe. Returns false without
// starting anything when a poll task is already active. The caller stops it
// via CancelLaunchOperations.
func (m *Monitor) StartMonitor(interval time.Duration, onChange func(bool)) bool {
	_, _, ok := m.startPolling(interval, onChange)
	return ok
}

// CancelLaunchOperations stops the active poll task, if any. Idempotent; this
// is the path taken when the user dismisses the launch prompt.
func (m *Monitor) CancelLaunchOperations() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()
}

// LaunchAndWaitForLobby is the composite operation: report progress, launch
// the game, then block until the lobby predicate first turns true. It returns
// false when the poll task could not be started (one is already active), when
// the task is cancelled from outside, or when ctx expires.
func (m *Monitor) LaunchAndWaitForLobby(ctx context.Context, onProgress func(string)) bool {
	if onProgress != nil {
		onProgress(ProgressLaunching)
	}
	m.Launch()

	ready := make(chan struct{})
	var once sync.Once
	pollCtx, stop, ok := m.startPolling(m.interval, func(inLobby bool) {
		if inLobby {
			once.Do(func() { close(ready) })
		}
	})
	if !ok {
		log.Warn("Launch monitor already active, refusing a second one")
		return false
	}

	select {
	case <-ready:
		stop()
		log.Info("Game confirmed in lobby state")
		return true
	case <-pollCtx.Done():
		// Stopped externally via CancelLaunchOperations.
		return false
	case <-ctx.Done():
		stop()
		return false
	}
}

// startPolling creates the poll task under the single-flight guard. The
// returned stop func only stops this task, never a successor.
func (m *Monitor) startPolling(interval time.Duration, onChange func(bool)) (context.Context, func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return nil, nil, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.gen++
	gen := m.gen

	stop := func() {
		m.mu.Lock()
		if m.gen == gen && m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.mu.Unlock()
	}

	go m.poll(ctx, interval, onChange)
	return ctx, stop, true
}

func (m *Monitor) poll(ctx context.Context, interval time.Duration, onChange func(bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inLobby, err := m.presence.IsInGameAndInLobbyState(ctx, m.userID)
			if err != nil {
				log.Warnf("Lobby poll failed: %v", err)
				continue
			}
			onChange(inLobby)
		}
	}
}
