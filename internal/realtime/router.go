package realtime

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Router fans envelopes out to the live connections of a channel's current
// members (membership intersected with the registry). A connection whose
// delivery fails is reported stale through onStale and cleaned up lazily;
// it is never retried.
type Router struct {
	// mu serializes fanouts so envelopes for a channel reach every
	// connection's queue in Broadcast invocation order. Enqueues never
	// block, so the critical section is short.
	mu sync.Mutex

	registry   *Registry
	membership *Membership

	// onStale is invoked outside the fanout loop for every connection whose
	// delivery failed. Set by the hub before the router is used.
	onStale func(client *Client, err error)
}

func NewRouter(registry *Registry, membership *Membership) *Router {
	return &Router{
		registry:   registry,
		membership: membership,
		onStale:    func(*Client, error) {},
	}
}

// Broadcast delivers env to every current member of channelID with a live
// connection, skipping excludeUserID (zero means no exclusion). Deliveries
// are independent: one member's failure never blocks the rest. Envelopes for
// a channel reach each connection in Broadcast invocation order.
func (r *Router) Broadcast(channelID uint, env *Envelope, excludeUserID uint) {
	data, err := env.Encode()
	if err != nil {
		slog.Error("dropping undeliverable envelope", "type", env.Type, "channelID", channelID, "error", err)
		return
	}

	r.mu.Lock()
	var stale []*Client
	delivered := 0
	for _, userID := range r.membership.MembersOf(channelID) {
		if userID == excludeUserID {
			continue
		}
		client, ok := r.registry.Lookup(userID)
		if !ok {
			// Stale subscription; the disconnect cascade will catch up.
			continue
		}
		if err := client.enqueue(websocket.TextMessage, data); err != nil {
			stale = append(stale, client)
			continue
		}
		delivered++
	}
	r.mu.Unlock()

	slog.Debug("channel broadcast", "type", env.Type, "channelID", channelID, "delivered", delivered, "stale", len(stale))
	r.reportStale(stale)
}

// BroadcastAll delivers env to every live connection regardless of channel
// membership. Presence updates are announced this way: presence is
// cross-channel social information.
func (r *Router) BroadcastAll(env *Envelope, excludeUserID uint) {
	data, err := env.Encode()
	if err != nil {
		slog.Error("dropping undeliverable envelope", "type", env.Type, "error", err)
		return
	}

	r.mu.Lock()
	var stale []*Client
	for _, client := range r.registry.All() {
		if client.userID == excludeUserID {
			continue
		}
		if err := client.enqueue(websocket.TextMessage, data); err != nil {
			stale = append(stale, client)
		}
	}
	r.mu.Unlock()

	r.reportStale(stale)
}

// SendTo delivers env to a single user's live connection, if any.
func (r *Router) SendTo(userID uint, env *Envelope) {
	client, ok := r.registry.Lookup(userID)
	if !ok {
		return
	}
	if err := client.sendEnvelope(env); err != nil {
		r.reportStale([]*Client{client})
	}
}

func (r *Router) reportStale(stale []*Client) {
	for _, client := range stale {
		slog.Warn("evicting stale connection", "clientID", client.id, "userID", client.userID)
		r.onStale(client, ErrSlowConsumer)
	}
}
