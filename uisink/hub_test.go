package uisink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skik4/cs2-casual-enjoyer-sub000/config"
	"github.com/skik4/cs2-casual-enjoyer-sub000/join"
)

type fakeJoins struct {
	mu        sync.Mutex
	started   []string
	cancelled []string
	resets    int
	sessions  map[string]join.Status
}

func (f *fakeJoins) Start(friendID string) (*join.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, friendID)
	return nil, nil
}

func (f *fakeJoins) Cancel(friendID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, friendID)
}

func (f *fakeJoins) GetAll() map[string]join.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := make(map[string]join.Status, len(f.sessions))
	for id, s := range f.sessions {
		snapshot[id] = s
	}
	return snapshot
}

func (f *fakeJoins) ResetAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

func (f *fakeJoins) startedWith(friendID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.started {
		if id == friendID {
			return true
		}
	}
	return false
}

type fakeLaunch struct {
	mu        sync.Mutex
	cancels   int
	nextValue bool
}

func (f *fakeLaunch) LaunchAndWaitForLobby(ctx context.Context, onProgress func(string)) bool {
	if onProgress != nil {
		onProgress("launching")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextValue
}

func (f *fakeLaunch) CancelLaunchOperations() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func testUIConfig() *config.UIConfig {
	return &config.UIConfig{PingInterval: 25, WriteTimeout: 5, MessageSizeLimit: 2048}
}

func TestLaunchDecisionTimesOut(t *testing.T) {
	hub := NewHub(testUIConfig(), 30*time.Millisecond)

	start := time.Now()
	accept := hub.RequestLaunchDecision(context.Background(), "friend-1")

	assert.False(t, accept)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestLaunchDecisionDelivered(t *testing.T) {
	hub := NewHub(testUIConfig(), time.Second)

	result := make(chan bool, 1)
	go func() {
		result <- hub.RequestLaunchDecision(context.Background(), "friend-1")
	}()

	// Wait until the prompt is registered before answering it.
	require.Eventually(t, func() bool {
		hub.promptMu.Lock()
		defer hub.promptMu.Unlock()
		return hub.pending != nil
	}, time.Second, 2*time.Millisecond)

	hub.deliverLaunchResponse(true)

	select {
	case accept := <-result:
		assert.True(t, accept)
	case <-time.After(time.Second):
		t.Fatal("decision never delivered")
	}
}

func TestSecondPromptDeclinedWhileOnePending(t *testing.T) {
	hub := NewHub(testUIConfig(), time.Second)

	go hub.RequestLaunchDecision(context.Background(), "friend-1")
	require.Eventually(t, func() bool {
		hub.promptMu.Lock()
		defer hub.promptMu.Unlock()
		return hub.pending != nil
	}, time.Second, 2*time.Millisecond)

	assert.False(t, hub.RequestLaunchDecision(context.Background(), "friend-2"),
		"a second concurrent prompt must be declined, not queued")

	hub.deliverLaunchResponse(false)
}

func TestDismissLaunchAnswersPendingPrompt(t *testing.T) {
	hub := NewHub(testUIConfig(), time.Second)
	launch := &fakeLaunch{}
	hub.Attach(&fakeJoins{}, launch)

	result := make(chan bool, 1)
	go func() {
		result <- hub.RequestLaunchDecision(context.Background(), "friend-1")
	}()
	require.Eventually(t, func() bool {
		hub.promptMu.Lock()
		defer hub.promptMu.Unlock()
		return hub.pending != nil
	}, time.Second, 2*time.Millisecond)

	hub.dispatch(nil, Command{Action: "dismiss_launch"})

	select {
	case accept := <-result:
		assert.False(t, accept)
	case <-time.After(time.Second):
		t.Fatal("dismiss did not answer the pending prompt")
	}
	launch.mu.Lock()
	assert.Equal(t, 1, launch.cancels)
	launch.mu.Unlock()
}

func TestWebSocketRoundTrip(t *testing.T) {
	hub := NewHub(testUIConfig(), time.Second)
	joins := &fakeJoins{sessions: map[string]join.Status{"friend-1": join.StatusWaiting}}
	hub.Attach(joins, &fakeLaunch{})

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer ts.Close()
	defer hub.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	// Handshake: hello with a client id, then the session snapshot.
	var hello Event
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	assert.NotEmpty(t, hello.ClientID)

	var snapshot Event
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "sessions", snapshot.Type)
	assert.Equal(t, join.StatusWaiting, snapshot.Sessions["friend-1"])

	// A join command routes into the controller.
	require.NoError(t, conn.WriteJSON(Command{Action: "join", FriendID: "friend-2"}))
	require.Eventually(t, func() bool {
		return joins.startedWith("friend-2")
	}, time.Second, 2*time.Millisecond)

	// Status emissions reach the connected UI.
	hub.OnStatusDotChange("friend-2", join.StatusConnecting)
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "status_dot", ev.Type)
	assert.Equal(t, "friend-2", ev.FriendID)
	assert.Equal(t, join.StatusConnecting, ev.Status)
}
