package join

import (
	"context"
	"time"

	"github.com/skik4/cs2-casual-enjoyer-sub000/config"
)

// StatusSink receives status changes for rendering. Implementations must be
// fast and non-blocking: the callbacks run on the join loops' goroutines and
// a stalled sink stalls polling.
type StatusSink interface {
	OnStatusDotChange(friendID string, status Status)
	OnJoinButtonChange(friendID string, status Status)
}

// LaunchDecider answers the "game is not running, launch it?" question before
// a join loop starts. Returning false aborts the join entirely; true means
// the launch is being handled elsewhere and the loop may begin polling.
type LaunchDecider interface {
	RequestLaunchDecision(ctx context.Context, friendID string) bool
}

// Timings groups the clock constants of the join state machine so tests can
// compress them. Production values come from config and match the ones the
// game client is tuned around.
type Timings struct {
	PollInterval        time.Duration
	MissingTimeout      time.Duration
	JoinedDisplayWindow time.Duration
	UIRefreshTick       time.Duration
	CancelSettleDelay   time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		PollInterval:        500 * time.Millisecond,
		MissingTimeout:      60000 * time.Millisecond,
		JoinedDisplayWindow: 1500 * time.Millisecond,
		UIRefreshTick:       1000 * time.Millisecond,
		CancelSettleDelay:   200 * time.Millisecond,
	}
}

func TimingsFromConfig(cfg *config.JoinConfig) Timings {
	return Timings{
		PollInterval:        time.Duration(cfg.PollInterval) * time.Millisecond,
		MissingTimeout:      time.Duration(cfg.MissingTimeout) * time.Millisecond,
		JoinedDisplayWindow: time.Duration(cfg.JoinedDisplayWindow) * time.Millisecond,
		UIRefreshTick:       time.Duration(cfg.UIRefreshTick) * time.Millisecond,
		CancelSettleDelay:   time.Duration(cfg.CancelSettleDelay) * time.Millisecond,
	}
}
