// Package uisink exposes the join engine's status stream to UI clients over
// a websocket, and carries the few commands a UI can send back. It is the
// daemon-side realization of the status-dot / join-button callbacks the
// overlay renders.
package uisink

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/skik4/cs2-casual-enjoyer-sub000/config"
	"github.com/skik4/cs2-casual-enjoyer-sub000/join"
	"github.com/skik4/cs2-casual-enjoyer-sub000/metrics"
)

var log = logrus.WithField("component", "uisink")

var upgrader = websocket.Upgrader{
	// The overlay is served from the Steam client's embedded browser; origin
	// checking buys nothing on a loopback daemon.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// JoinController is the slice of the join registry the UI drives.
type JoinController interface {
	Start(friendID string) (*join.Session, error)
	Cancel(friendID string)
	GetAll() map[string]join.Status
	ResetAll()
}

// LaunchController is the slice of the launch monitor the UI drives.
type LaunchController interface {
	LaunchAndWaitForLobby(ctx context.Context, onProgress func(string)) bool
	CancelLaunchOperations()
}

// Event is the outbound wire format. Type is one of hello, status_dot,
// join_button, sessions, launch_prompt, launch_progress, launch_result.
type Event struct {
	Type     string                 `json:"type"`
	ClientID string                 `json:"clientId,omitempty"`
	FriendID string                 `json:"friendId,omitempty"`
	Status   join.Status            `json:"status,omitempty"`
	Sessions map[string]join.Status `json:"sessions,omitempty"`
	Stage    string                 `json:"stage,omitempty"`
	OK       *bool                  `json:"ok,omitempty"`
}

// Command is the inbound wire format.
type Command struct {
	Action   string `json:"action"`
	FriendID string `json:"friendId,omitempty"`
	Accept   bool   `json:"accept,omitempty"`
}

// Hub tracks connected UI clients, fans status events out to them and routes
// their commands into the join engine. It implements join.StatusSink and
// join.LaunchDecider.
type Hub struct {
	cfg             *config.UIConfig
	decisionTimeout time.Duration

	joins  JoinController
	launch LaunchController

	mu      sync.Mutex
	clients map[string]*Client

	promptMu      sync.Mutex
	pending       chan bool
	pendingFriend string
}

func NewHub(cfg *config.UIConfig, decisionTimeout time.Duration) *Hub {
	return &Hub{
		cfg:             cfg,
		decisionTimeout: decisionTimeout,
		clients:         make(map[string]*Client),
	}
}

// Attach wires the controllers. Separate from NewHub because the registry
// needs the hub as its sink before the hub can need the registry.
func (h *Hub) Attach(j JoinController, l LaunchController) {
	h.joins = j
	h.launch = l
}

// OnStatusDotChange implements join.StatusSink.
func (h *Hub) OnStatusDotChange(friendID string, status join.Status) {
	h.broadcast(Event{Type: "status_dot", FriendID: friendID, Status: status})
}

// OnJoinButtonChange implements join.StatusSink.
func (h *Hub) OnJoinButtonChange(friendID string, status join.Status) {
	h.broadcast(Event{Type: "join_button", FriendID: friendID, Status: status})
}

// RequestLaunchDecision implements join.LaunchDecider: it prompts the UI and
// blocks until the user answers, the timeout elapses or ctx is cancelled.
// Only one prompt may be outstanding; a second join asking concurrently is
// answered false rather than queued.
func (h *Hub) RequestLaunchDecision(ctx context.Context, friendID string) bool {
	h.promptMu.Lock()
	if h.pending != nil {
		h.promptMu.Unlock()
		log.Warnf("Launch prompt already pending, declining for %s", friendID)
		return false
	}
	ch := make(chan bool, 1)
	h.pending = ch
	h.pendingFriend = friendID
	h.promptMu.Unlock()

	defer func() {
		h.promptMu.Lock()
		h.pending = nil
		h.pendingFriend = ""
		h.promptMu.Unlock()
	}()

	h.broadcast(Event{Type: "launch_prompt", FriendID: friendID})

	select {
	case accept := <-ch:
		return accept
	case <-time.After(h.decisionTimeout):
		log.Infof("Launch prompt for %s timed out", friendID)
		return false
	case <-ctx.Done():
		return false
	}
}

// deliverLaunchResponse hands the user's answer to the blocked decision, if
// one is still waiting.
func (h *Hub) deliverLaunchResponse(accept bool) {
	h.promptMu.Lock()
	ch := h.pending
	h.promptMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- accept:
	default:
	}
}

func (h *Hub) broadcast(event Event) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Enqueue(event)
	}
}

// HandleWebSocket upgrades the connection and serves one UI client until it
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(int64(h.cfg.MessageSizeLimit))

	client := NewClient(uuid.New().String(), conn, h.cfg)
	client.StartPumps()

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	metrics.UIClientsActive.Inc()
	log.Infof("UI client %s connected", client.ID)

	defer func() {
		h.mu.Lock()
		delete(h.clients, client.ID)
		h.mu.Unlock()
		metrics.UIClientsActive.Dec()
		client.Close(websocket.CloseNormalClosure, "Client disconnected")
		log.Infof("UI client %s disconnected", client.ID)
	}()

	// Handshake: announce the client id and the current session snapshot so
	// a reconnecting overlay paints the right state immediately.
	client.Enqueue(Event{Type: "hello", ClientID: client.ID})
	if h.joins != nil {
		client.Enqueue(Event{Type: "sessions", Sessions: h.joins.GetAll()})
	}

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				log.Warnf("Read error from UI client %s: %v", client.ID, err)
			}
			return
		}
		h.dispatch(client, cmd)
	}
}

func (h *Hub) dispatch(client *Client, cmd Command) {
	switch cmd.Action {
	case "join":
		if _, err := h.joins.Start(cmd.FriendID); err != nil {
			log.Warnf("Join request from %s rejected: %v", client.ID, err)
		}
	case "cancel":
		h.joins.Cancel(cmd.FriendID)
	case "reset":
		h.joins.ResetAll()
	case "sessions":
		client.Enqueue(Event{Type: "sessions", Sessions: h.joins.GetAll()})
	case "launch_response":
		h.deliverLaunchResponse(cmd.Accept)
	case "launch_game":
		go func() {
			ok := h.launch.LaunchAndWaitForLobby(context.Background(), func(stage string) {
				h.broadcast(Event{Type: "launch_progress", Stage: stage})
			})
			h.broadcast(Event{Type: "launch_result", OK: &ok})
		}()
	case "dismiss_launch":
		h.launch.CancelLaunchOperations()
		h.deliverLaunchResponse(false)
	default:
		log.Warnf("Unknown action %q from UI client %s", cmd.Action, client.ID)
	}
}

// Close disconnects every UI client; used on daemon shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close(websocket.CloseGoingAway, "Server shutting down")
	}
}
