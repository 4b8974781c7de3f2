package realtime

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// collaboratorTimeout bounds every call out to the database, the presence
// store, and the firehose so one slow collaborator cannot stall a
// connection's read loop.
const collaboratorTimeout = 5 * time.Second

// Hub wires the registry, membership, router, presence tracker, and voice
// relay together and dispatches inbound frames. Lifecycle events (register,
// unregister) are serialized through its run loop; broadcasts run on the
// sending connection's goroutine.
type Hub struct {
	registry   *Registry
	membership *Membership
	router     *Router
	presence   *PresenceTracker
	voice      *VoiceRelay

	directory ChannelDirectory
	messages  MessageStore

	// Optional side-write collaborators.
	presenceStore PresenceStore
	firehose      EventSink

	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures optional hub collaborators.
type Option func(*Hub)

// WithPresenceStore mirrors presence transitions into an external store.
func WithPresenceStore(store PresenceStore) Option {
	return func(h *Hub) {
		h.presenceStore = store
	}
}

// WithEventSink publishes a copy of broadcast chat events for offline
// consumers.
func WithEventSink(sink EventSink) Option {
	return func(h *Hub) {
		h.firehose = sink
	}
}

func NewHub(directory ChannelDirectory, messages MessageStore, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	registry := NewRegistry()
	membership := NewMembership()

	hub := &Hub{
		registry:   registry,
		membership: membership,
		router:     NewRouter(registry, membership),
		presence:   NewPresenceTracker(),
		voice:      NewVoiceRelay(registry),
		directory:  directory,
		messages:   messages,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}

	hub.router.onStale = hub.evictStale
	hub.voice.onStale = hub.evictStale

	for _, opt := range opts {
		opt(hub)
	}
	return hub
}

// Run processes connection lifecycle events until Stop is called. Register
// and unregister are handled on this single goroutine, so eviction on
// reconnect and the disconnect cascade never race each other.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.connect(client)

		case client := <-h.unregister:
			h.disconnect(client)

		case <-h.ctx.Done():
			slog.Info("hub shutting down")
			for _, client := range h.registry.All() {
				client.terminate()
			}
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// OnlineUsers returns the number of live connections.
func (h *Hub) OnlineUsers() int {
	return h.registry.Len()
}

// Presence returns the tracked presence state for userID.
func (h *Hub) Presence(userID uint) (PresenceState, bool) {
	return h.presence.Get(userID)
}

// NotifyMessageUpdated broadcasts a message_updated event on behalf of an
// external caller (the REST layer edits messages; there is no inbound edit
// frame).
func (h *Hub) NotifyMessageUpdated(msg MessagePayload) {
	env := NewMessageUpdatedEnvelope(msg)
	h.router.Broadcast(msg.ChannelID, env, 0)
	h.publishEvent(env)
}

// connect installs client as its user's live connection. A previous
// connection for the same user is terminated without any frames and its
// state cleaned up before the new connection's presence goes online.
func (h *Hub) connect(client *Client) {
	if prev := h.registry.Register(client); prev != nil {
		slog.Info("evicting previous connection", "userID", client.userID, "prevClientID", prev.id)
		prev.terminate()
		h.cascade(prev)
	}

	state := h.presence.ForceOnline(client.userID)
	h.router.BroadcastAll(NewPresenceEnvelope(state.UserID, state.Status, state.LastSeen), 0)
	h.mirrorPresence(state)

	slog.Info("client connected", "clientID", client.id, "userID", client.userID)
}

// disconnect runs the cleanup cascade for client exactly once. The registry
// removal is the latch: if the entry was already replaced by a reconnect or
// removed by an earlier disconnect, there is nothing left to do.
func (h *Hub) disconnect(client *Client) {
	client.close()
	if !h.registry.Remove(client) {
		return
	}
	h.cascade(client)
	slog.Info("client disconnected", "clientID", client.id, "userID", client.userID, "duration", time.Since(client.connectedAt))
}

// cascade drops all of a departed connection's state and announces the
// departure: channel_left to each subscribed channel's remaining members,
// voice_leave to its voice channel, and a global offline presence update.
func (h *Hub) cascade(client *Client) {
	for _, channelID := range h.membership.DropUser(client.userID) {
		h.router.Broadcast(channelID, NewChannelEventEnvelope(EventChannelLeft, channelID, client.userID), client.userID)
	}

	h.voice.DropUser(client.userID)

	state := h.presence.ForceOffline(client.userID)
	h.router.BroadcastAll(NewPresenceEnvelope(state.UserID, state.Status, state.LastSeen), client.userID)
	h.mirrorPresence(state)
}

// evictStale removes a connection whose delivery failed. The actual cleanup
// goes through the unregister channel so it is serialized with the rest of
// the lifecycle; the send must not block the broadcasting goroutine.
func (h *Hub) evictStale(client *Client, err error) {
	client.close()
	go func() {
		select {
		case h.unregister <- client:
		case <-h.ctx.Done():
		}
	}()
}

// dispatch routes one inbound text frame. Errors are answered to the
// originator only; nothing here can take down the connection except a
// transport failure surfacing through the read loop.
func (h *Hub) dispatch(client *Client, raw []byte) {
	frameKind, err := frameType(raw)
	if err != nil {
		h.answerError(client, err)
		return
	}

	switch frameKind {
	case FrameJoinChannel:
		var f JoinChannelFrame
		if err = decodeFrame(raw, &f); err == nil {
			err = h.handleJoinChannel(client, f)
		}

	case FrameLeaveChannel:
		var f LeaveChannelFrame
		if err = decodeFrame(raw, &f); err == nil {
			err = h.handleLeaveChannel(client, f)
		}

	case FrameMessage:
		var f MessageFrame
		if err = decodeFrame(raw, &f); err == nil {
			err = h.handleMessage(client, f)
		}

	case FrameAddReaction:
		var f ReactionFrame
		if err = decodeFrame(raw, &f); err == nil {
			err = h.handleReaction(client, f, EventReactionAdded)
		}

	case FrameRemoveReaction:
		var f ReactionFrame
		if err = decodeFrame(raw, &f); err == nil {
			err = h.handleReaction(client, f, EventReactionRemoved)
		}

	case FrameStatusUpdate:
		var f StatusUpdateFrame
		if err = decodeFrame(raw, &f); err == nil {
			err = h.handleStatusUpdate(client, f)
		}

	case FrameVoiceJoin:
		var f VoiceJoinFrame
		if err = decodeFrame(raw, &f); err == nil {
			h.voice.Join(f.ChannelID, client.userID)
		}

	case FrameVoiceLeave:
		h.voice.Leave(client.userID)

	case FrameVoiceState:
		var f VoiceStateFrame
		if err = decodeFrame(raw, &f); err == nil {
			err = h.voice.UpdateState(client.userID, f.Muted, f.Speaking)
		}

	case FramePing:
		err = client.sendEnvelope(NewPongEnvelope())

	default:
		err = newValidationError("UNKNOWN_FRAME", "unknown frame type: "+string(frameKind))
	}

	if err != nil {
		h.answerError(client, err)
	}
}

// handleAudio relays a binary audio frame from client's read loop.
func (h *Hub) handleAudio(client *Client, data []byte) {
	h.voice.RelayAudio(client.userID, data)
}

func (h *Hub) handleJoinChannel(client *Client, f JoinChannelFrame) error {
	ctx, cancel := context.WithTimeout(client.ctx, collaboratorTimeout)
	defer cancel()

	public, err := h.directory.IsPublic(ctx, f.ChannelID)
	if err != nil {
		return newInternalError("channel lookup failed", err)
	}
	if !public {
		member, err := h.directory.IsMember(ctx, f.ChannelID, client.userID)
		if err != nil {
			return newInternalError("membership lookup failed", err)
		}
		if !member {
			return newAuthorizationError("CHANNEL_FORBIDDEN", "not a member of this channel")
		}
	}

	// Confirm to the joiner before the subscription becomes visible to
	// broadcasters, so the confirmation always precedes any channel event
	// delivered to this connection.
	if err := client.sendEnvelope(NewChannelEventEnvelope(EventChannelJoined, f.ChannelID, client.userID)); err != nil {
		return err
	}

	if h.membership.Join(f.ChannelID, client.userID) {
		h.router.Broadcast(f.ChannelID, NewChannelEventEnvelope(EventChannelJoined, f.ChannelID, client.userID), client.userID)
		slog.Info("channel joined", "channelID", f.ChannelID, "userID", client.userID)
	}
	return nil
}

func (h *Hub) handleLeaveChannel(client *Client, f LeaveChannelFrame) error {
	if h.membership.Leave(f.ChannelID, client.userID) {
		h.router.Broadcast(f.ChannelID, NewChannelEventEnvelope(EventChannelLeft, f.ChannelID, client.userID), client.userID)
		slog.Info("channel left", "channelID", f.ChannelID, "userID", client.userID)
	}
	return nil
}

func (h *Hub) handleMessage(client *Client, f MessageFrame) error {
	if !h.membership.IsSubscribed(f.ChannelID, client.userID) {
		return &Error{Kind: KindAuthorization, Code: "NOT_SUBSCRIBED", Message: "join the channel before posting", Err: ErrNotSubscribed}
	}

	ctx, cancel := context.WithTimeout(client.ctx, collaboratorTimeout)
	defer cancel()

	messageID, err := h.messages.SaveMessage(ctx, f.ChannelID, client.userID, f.Content)
	if err != nil {
		// The event is not broadcast half-completed; the sender alone
		// learns persistence failed.
		return newInternalError("message persistence failed", err)
	}

	env := NewMessageEnvelope(MessagePayload{
		ID:        messageID,
		ChannelID: f.ChannelID,
		SenderID:  client.userID,
		Content:   f.Content,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	h.router.Broadcast(f.ChannelID, env, client.userID)
	h.publishEvent(env)
	return nil
}

func (h *Hub) handleReaction(client *Client, f ReactionFrame, event EventType) error {
	if !h.membership.IsSubscribed(f.ChannelID, client.userID) {
		return &Error{Kind: KindAuthorization, Code: "NOT_SUBSCRIBED", Message: "join the channel before reacting", Err: ErrNotSubscribed}
	}

	ctx, cancel := context.WithTimeout(client.ctx, collaboratorTimeout)
	defer cancel()

	var err error
	if event == EventReactionAdded {
		err = h.messages.AddReaction(ctx, f.MessageID, client.userID, f.Emoji)
	} else {
		err = h.messages.RemoveReaction(ctx, f.MessageID, client.userID, f.Emoji)
	}
	if err != nil {
		return newInternalError("reaction persistence failed", err)
	}

	env := NewReactionEnvelope(event, ReactionPayload{
		ChannelID: f.ChannelID,
		MessageID: f.MessageID,
		UserID:    client.userID,
		Emoji:     f.Emoji,
	})
	// The sender receives its own reaction broadcast as confirmation.
	h.router.Broadcast(f.ChannelID, env, 0)
	h.publishEvent(env)
	return nil
}

func (h *Hub) handleStatusUpdate(client *Client, f StatusUpdateFrame) error {
	state, err := h.presence.SetStatus(client.userID, Status(f.Status))
	if err != nil {
		return err
	}

	h.router.BroadcastAll(NewPresenceEnvelope(state.UserID, state.Status, state.LastSeen), 0)
	h.mirrorPresence(state)
	return nil
}

// answerError converts a handler failure into an error frame for the
// originator. Other connections never see it.
func (h *Hub) answerError(client *Client, err error) {
	var e *Error
	if errors.As(err, &e) {
		client.sendError(e.Code, e.Message)
		if e.Kind == KindInternal {
			slog.Error("request failed", "clientID", client.id, "userID", client.userID, "error", err)
		}
		return
	}

	switch {
	case errors.Is(err, ErrNotVoiceParticipant):
		client.sendError("NOT_IN_VOICE", "join a voice channel first")
	case errors.Is(err, ErrSlowConsumer):
		// A direct delivery failed the same way a broadcast would have;
		// same consequence.
		h.evictStale(client, err)
	case errors.Is(err, ErrClientDisconnected):
		// The connection is already on its way out.
	default:
		slog.Error("request failed", "clientID", client.id, "userID", client.userID, "error", err)
		client.sendError("INTERNAL_ERROR", "unexpected error")
	}
}

// mirrorPresence writes a presence transition to the external store.
// Best-effort: failures are logged and never affect the in-memory state.
func (h *Hub) mirrorPresence(state PresenceState) {
	if h.presenceStore == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(h.ctx, collaboratorTimeout)
		defer cancel()
		if err := h.presenceStore.SetStatus(ctx, state.UserID, string(state.Status), state.LastSeen); err != nil {
			slog.Warn("presence store write failed", "userID", state.UserID, "error", err)
		}
	}()
}

// publishEvent hands a broadcast envelope to the firehose. Fire-and-forget.
func (h *Hub) publishEvent(env *Envelope) {
	if h.firehose == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(h.ctx, collaboratorTimeout)
		defer cancel()
		if err := h.firehose.Publish(ctx, env); err != nil {
			slog.Warn("firehose publish failed", "type", env.Type, "channelID", env.ChannelID, "error", err)
		}
	}()
}
