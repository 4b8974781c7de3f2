package realtime

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
)

// VoiceState is a participant's current mute/speaking flags. Mutated only by
// the owning user's own voice_state frames.
type VoiceState struct {
	Muted    bool
	Speaking bool
}

// VoiceRelay is the channel-scoped signaling and audio fanout for voice.
// Voice participation is its own membership set, distinct from text-channel
// subscriptions: a user is either NotJoined or Joined per channel, and a
// connection participates in at most one voice channel at a time.
type VoiceRelay struct {
	mu sync.Mutex

	registry *Registry

	// participants maps channel id to the joined users and their state.
	participants map[uint]map[uint]*VoiceState

	// userChannel maps user id to the voice channel it is joined to, so
	// inbound binary audio frames can be routed without a channel tag.
	userChannel map[uint]uint

	onStale func(client *Client, err error)
}

func NewVoiceRelay(registry *Registry) *VoiceRelay {
	return &VoiceRelay{
		registry:     registry,
		participants: make(map[uint]map[uint]*VoiceState),
		userChannel:  make(map[uint]uint),
		onStale:      func(*Client, error) {},
	}
}

// Join moves (channelID, userID) from NotJoined to Joined. The new joiner
// receives a participants_list snapshot; everyone already joined receives a
// voice_join announcement. Joining while joined to another channel leaves
// that channel first. Idempotent for the same channel.
func (v *VoiceRelay) Join(channelID, userID uint) {
	v.mu.Lock()

	if prev, ok := v.userChannel[userID]; ok {
		if prev == channelID {
			v.mu.Unlock()
			return
		}
		v.leaveLocked(prev, userID)
	}

	if v.participants[channelID] == nil {
		v.participants[channelID] = make(map[uint]*VoiceState)
	}
	v.participants[channelID][userID] = &VoiceState{}
	v.userChannel[userID] = channelID

	snapshot := v.snapshotLocked(channelID)
	others := v.othersLocked(channelID, userID)
	v.mu.Unlock()

	slog.Info("voice participant joined", "channelID", channelID, "userID", userID, "participants", len(snapshot))

	v.sendTo(userID, NewVoiceParticipantsEnvelope(channelID, snapshot))
	v.announce(others, NewVoiceJoinEnvelope(channelID, userID))
}

// Leave moves the user back to NotJoined and announces the departure to the
// remaining participants. Idempotent.
func (v *VoiceRelay) Leave(userID uint) {
	v.mu.Lock()
	channelID, ok := v.userChannel[userID]
	if !ok {
		v.mu.Unlock()
		return
	}
	v.leaveLocked(channelID, userID)
	others := v.othersLocked(channelID, 0)
	v.mu.Unlock()

	slog.Info("voice participant left", "channelID", channelID, "userID", userID)
	v.announce(others, NewVoiceLeaveEnvelope(channelID, userID))
}

// DropUser is the disconnect path; identical to Leave.
func (v *VoiceRelay) DropUser(userID uint) {
	v.Leave(userID)
}

// UpdateState applies a voice_state frame from the owning user and
// re-announces it to the other participants.
func (v *VoiceRelay) UpdateState(userID uint, muted, speaking bool) error {
	v.mu.Lock()
	channelID, ok := v.userChannel[userID]
	if !ok {
		v.mu.Unlock()
		return ErrNotVoiceParticipant
	}
	state := v.participants[channelID][userID]
	state.Muted = muted
	state.Speaking = speaking
	others := v.othersLocked(channelID, userID)
	v.mu.Unlock()

	v.announce(others, NewVoiceStateEnvelope(channelID, userID, muted, speaking))
	return nil
}

// RelayAudio forwards a binary audio frame from senderID to the other
// participants of its voice channel. Frames from muted senders, or from users
// not joined to any voice channel, are dropped. Fire-and-forget: a slow
// consumer's dropped frame is not retried, and unlike envelope delivery a
// failed audio enqueue does not evict the connection.
func (v *VoiceRelay) RelayAudio(senderID uint, data []byte) {
	v.mu.Lock()
	channelID, ok := v.userChannel[senderID]
	if !ok {
		v.mu.Unlock()
		return
	}
	if state := v.participants[channelID][senderID]; state == nil || state.Muted {
		v.mu.Unlock()
		return
	}
	targets := v.othersLocked(channelID, senderID)
	v.mu.Unlock()

	for _, userID := range targets {
		client, ok := v.registry.Lookup(userID)
		if !ok {
			continue
		}
		if err := client.enqueue(websocket.BinaryMessage, data); err != nil {
			slog.Debug("dropped audio frame", "userID", userID, "error", err)
		}
	}
}

// ParticipantState returns the voice state of userID in channelID, if joined.
func (v *VoiceRelay) ParticipantState(channelID, userID uint) (VoiceState, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	state, ok := v.participants[channelID][userID]
	if !ok {
		return VoiceState{}, false
	}
	return *state, true
}

// Participants returns the user ids joined to channelID's voice session.
func (v *VoiceRelay) Participants(channelID uint) []uint {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.othersLocked(channelID, 0)
}

func (v *VoiceRelay) leaveLocked(channelID, userID uint) {
	if users, ok := v.participants[channelID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(v.participants, channelID)
		}
	}
	delete(v.userChannel, userID)
}

func (v *VoiceRelay) snapshotLocked(channelID uint) []VoiceParticipantInfo {
	users := v.participants[channelID]
	snapshot := make([]VoiceParticipantInfo, 0, len(users))
	for userID, state := range users {
		snapshot = append(snapshot, VoiceParticipantInfo{
			UserID:   userID,
			Muted:    state.Muted,
			Speaking: state.Speaking,
		})
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].UserID < snapshot[j].UserID })
	return snapshot
}

func (v *VoiceRelay) othersLocked(channelID, excludeUserID uint) []uint {
	users := v.participants[channelID]
	result := make([]uint, 0, len(users))
	for userID := range users {
		if userID == excludeUserID {
			continue
		}
		result = append(result, userID)
	}
	return result
}

func (v *VoiceRelay) sendTo(userID uint, env *Envelope) {
	client, ok := v.registry.Lookup(userID)
	if !ok {
		return
	}
	if err := client.sendEnvelope(env); err != nil {
		v.onStale(client, err)
	}
}

func (v *VoiceRelay) announce(userIDs []uint, env *Envelope) {
	data, err := env.Encode()
	if err != nil {
		slog.Error("dropping undeliverable voice envelope", "type", env.Type, "error", err)
		return
	}
	for _, userID := range userIDs {
		client, ok := v.registry.Lookup(userID)
		if !ok {
			continue
		}
		if err := client.enqueue(websocket.TextMessage, data); err != nil {
			v.onStale(client, err)
		}
	}
}
