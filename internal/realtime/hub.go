// Package realtime pushes friends' location fixes to connected websocket
// clients. Fixes arrive over Redis pub/sub, are debounced per owner and are
// delivered only to viewers who can currently see the owner.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HammerMeetNail/campussafe/internal/debounce"
	"github.com/HammerMeetNail/campussafe/internal/logging"
	"github.com/HammerMeetNail/campussafe/internal/metrics"
	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

const (
	defaultWriteWait = 10 * time.Second
	pongWait         = 60 * time.Second
	maxMessageSize   = 512
	sendBuffer       = 16
)

// LocationReader resolves what a viewer may see of an owner.
type LocationReader interface {
	GetVisibleLocation(ctx context.Context, viewerID, ownerID uuid.UUID) (*models.LocationView, error)
}

// FriendLister lists the accepted friends of a user.
type FriendLister interface {
	FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type Options struct {
	Debounce     time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	// CheckOrigin overrides the upgrader's origin check; nil allows all.
	CheckOrigin func(r *http.Request) bool
}

type Hub struct {
	locations LocationReader
	friends   FriendLister

	delay        time.Duration
	writeWait    time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}

	pendingMu sync.Mutex
	pending   map[uuid.UUID]*debounce.Debouncer
}

func NewHub(locations LocationReader, friends FriendLister, opts Options) *Hub {
	h := &Hub{
		locations:    locations,
		friends:      friends,
		delay:        opts.Debounce,
		writeWait:    opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		clients:      make(map[uuid.UUID]map[*Client]struct{}),
		pending:      make(map[uuid.UUID]*debounce.Debouncer),
	}
	if h.delay <= 0 {
		h.delay = debounce.DefaultDelay
	}
	if h.writeWait <= 0 {
		h.writeWait = defaultWriteWait
	}
	if h.pingInterval <= 0 || h.pingInterval >= pongWait {
		h.pingInterval = pongWait * 9 / 10
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
	return h
}

// Run consumes location fixes until ctx is done or the subscription ends.
func (h *Hub) Run(ctx context.Context, sub Subscriber) error {
	messages, err := sub.Subscribe(ctx, services.LocationChannelPrefix+"*")
	if err != nil {
		return err
	}
	logging.Info("Realtime hub subscribed", map[string]interface{}{"pattern": services.LocationChannelPrefix + "*"})

	for {
		select {
		case <-ctx.Done():
			h.cancelPending()
			return nil
		case msg, ok := <-messages:
			if !ok {
				h.cancelPending()
				return nil
			}
			h.Dispatch(ctx, msg.Channel)
		}
	}
}

// Dispatch schedules fan-out for the owner named by channel. Bursts for the
// same owner within the debounce window collapse into one delivery.
func (h *Hub) Dispatch(ctx context.Context, channel string) {
	ownerID, err := uuid.Parse(strings.TrimPrefix(channel, services.LocationChannelPrefix))
	if err != nil {
		logging.Warn("Ignoring location message on unexpected channel", map[string]interface{}{"channel": channel})
		return
	}

	h.pendingMu.Lock()
	d, ok := h.pending[ownerID]
	if !ok {
		d = debounce.New(h.delay)
		h.pending[ownerID] = d
	}
	h.pendingMu.Unlock()

	d.Trigger(ctx, func() {
		h.pendingMu.Lock()
		if h.pending[ownerID] == d && d.State() == debounce.StateCommitted {
			delete(h.pending, ownerID)
		}
		h.pendingMu.Unlock()
		h.fanOut(ctx, ownerID)
	})
}

func (h *Hub) cancelPending() {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	for owner, d := range h.pending {
		d.Cancel()
		delete(h.pending, owner)
	}
}

// fanOut reads the owner's latest fix once per connected friend, through the
// same visibility gate the REST API uses.
func (h *Hub) fanOut(ctx context.Context, ownerID uuid.UUID) {
	friendIDs, err := h.friends.FriendIDs(ctx, ownerID)
	if err != nil {
		logging.Error("Failed to list friends for fan-out", map[string]interface{}{
			"owner_id": ownerID.String(),
			"error":    err.Error(),
		})
		return
	}

	for _, viewerID := range friendIDs {
		clients := h.clientsFor(viewerID)
		if len(clients) == 0 {
			continue
		}

		view, err := h.locations.GetVisibleLocation(ctx, viewerID, ownerID)
		if err != nil {
			logging.Warn("Failed to resolve location visibility", map[string]interface{}{
				"owner_id":  ownerID.String(),
				"viewer_id": viewerID.String(),
				"error":     err.Error(),
			})
			continue
		}
		if view == nil || view.Visibility != models.LocationVisible {
			continue
		}

		payload, err := json.Marshal(Event{Type: EventLocation, Location: view})
		if err != nil {
			continue
		}
		for _, c := range clients {
			h.deliver(c, payload)
		}
	}
}

// deliver holds the read lock so unregister cannot close c.send mid-send.
func (h *Hub) deliver(c *Client, payload []byte) {
	h.mu.RLock()
	if _, ok := h.clients[c.userID][c]; !ok {
		h.mu.RUnlock()
		return
	}
	slow := false
	select {
	case c.send <- payload:
	default:
		slow = true
	}
	h.mu.RUnlock()

	if slow {
		logging.Warn("Dropping slow realtime client", map[string]interface{}{"user_id": c.userID.String()})
		h.unregister(c)
	}
}

func (h *Hub) clientsFor(userID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.clients[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	metrics.RealtimeConnections.Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	metrics.RealtimeConnections.Dec()
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// ServeWS upgrades the request and streams location events to viewerID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, viewerID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Websocket upgrade failed", map[string]interface{}{
			"user_id": viewerID.String(),
			"error":   err.Error(),
		})
		return
	}

	c := &Client{
		hub:    h,
		conn:   conn,
		userID: viewerID,
		send:   make(chan []byte, sendBuffer),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}
