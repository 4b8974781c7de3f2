package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType tags an outbound envelope. The set is closed; the hub dispatches
// on it exhaustively and unknown tags never leave the server.
type EventType string

const (
	EventNewMessage      EventType = "new_message"
	EventMessageUpdated  EventType = "message_updated"
	EventReactionAdded   EventType = "reaction_added"
	EventReactionRemoved EventType = "reaction_removed"
	EventPresenceUpdate  EventType = "presence_update"
	EventChannelJoined   EventType = "channel_joined"
	EventChannelLeft     EventType = "channel_left"
	EventError           EventType = "error"
	EventPong            EventType = "pong"

	// Voice signaling events, scoped to a channel's voice participants.
	EventVoiceParticipants EventType = "participants_list"
	EventVoiceJoin         EventType = "voice_join"
	EventVoiceLeave        EventType = "voice_leave"
	EventVoiceState        EventType = "voice_state"
)

// String returns the string representation of the EventType.
func (t EventType) String() string {
	return string(t)
}

// IsValid checks if the EventType is a known enum value.
func (t EventType) IsValid() bool {
	switch t {
	case EventNewMessage, EventMessageUpdated, EventReactionAdded,
		EventReactionRemoved, EventPresenceUpdate, EventChannelJoined,
		EventChannelLeft, EventError, EventPong, EventVoiceParticipants,
		EventVoiceJoin, EventVoiceLeave, EventVoiceState:
		return true
	default:
		return false
	}
}

// Envelope is the wire unit written to clients. ChannelID is zero for global
// events (presence, errors, pong). FromUserID identifies the originating user
// where one exists. Payload is one of the typed payload structs below;
// an Envelope is immutable once constructed.
type Envelope struct {
	Type       EventType `json:"type"`
	ChannelID  uint      `json:"channel_id,omitempty"`
	FromUserID uint      `json:"from_user_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}

// Encode marshals the envelope once for fanout so every recipient gets the
// same bytes.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", e.Type, err)
	}
	return data, nil
}

type MessagePayload struct {
	ID        uint   `json:"id"`
	ChannelID uint   `json:"channel_id"`
	SenderID  uint   `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type ReactionPayload struct {
	ChannelID uint   `json:"channel_id"`
	MessageID uint   `json:"message_id"`
	UserID    uint   `json:"user_id"`
	Emoji     string `json:"emoji"`
}

type PresencePayload struct {
	UserID    uint   `json:"user_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ChannelEventPayload struct {
	ChannelID uint `json:"channel_id"`
	UserID    uint `json:"user_id"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type VoiceStatePayload struct {
	UserID   uint `json:"user_id"`
	Muted    bool `json:"muted"`
	Speaking bool `json:"speaking"`
}

type VoiceParticipantInfo struct {
	UserID   uint `json:"user_id"`
	Muted    bool `json:"isMuted"`
	Speaking bool `json:"isSpeaking"`
}

type VoiceParticipantsPayload struct {
	Participants []VoiceParticipantInfo `json:"participants"`
}

func NewMessageEnvelope(msg MessagePayload) *Envelope {
	return &Envelope{
		Type:       EventNewMessage,
		ChannelID:  msg.ChannelID,
		FromUserID: msg.SenderID,
		Payload:    msg,
	}
}

func NewMessageUpdatedEnvelope(msg MessagePayload) *Envelope {
	return &Envelope{
		Type:       EventMessageUpdated,
		ChannelID:  msg.ChannelID,
		FromUserID: msg.SenderID,
		Payload:    msg,
	}
}

func NewReactionEnvelope(t EventType, r ReactionPayload) *Envelope {
	return &Envelope{
		Type:       t,
		ChannelID:  r.ChannelID,
		FromUserID: r.UserID,
		Payload:    r,
	}
}

func NewPresenceEnvelope(userID uint, status Status, at time.Time) *Envelope {
	return &Envelope{
		Type:       EventPresenceUpdate,
		FromUserID: userID,
		Payload: PresencePayload{
			UserID:    userID,
			Status:    string(status),
			Timestamp: at.UTC().Format(time.RFC3339),
		},
	}
}

func NewChannelEventEnvelope(t EventType, channelID, userID uint) *Envelope {
	return &Envelope{
		Type:       t,
		ChannelID:  channelID,
		FromUserID: userID,
		Payload:    ChannelEventPayload{ChannelID: channelID, UserID: userID},
	}
}

func NewErrorEnvelope(code, message string) *Envelope {
	return &Envelope{
		Type:    EventError,
		Payload: ErrorPayload{Code: code, Message: message},
	}
}

func NewPongEnvelope() *Envelope {
	return &Envelope{Type: EventPong}
}

func NewVoiceStateEnvelope(channelID, userID uint, muted, speaking bool) *Envelope {
	return &Envelope{
		Type:       EventVoiceState,
		ChannelID:  channelID,
		FromUserID: userID,
		Payload:    VoiceStatePayload{UserID: userID, Muted: muted, Speaking: speaking},
	}
}

func NewVoiceJoinEnvelope(channelID, userID uint) *Envelope {
	return &Envelope{
		Type:       EventVoiceJoin,
		ChannelID:  channelID,
		FromUserID: userID,
		Payload:    VoiceStatePayload{UserID: userID},
	}
}

func NewVoiceLeaveEnvelope(channelID, userID uint) *Envelope {
	return &Envelope{
		Type:       EventVoiceLeave,
		ChannelID:  channelID,
		FromUserID: userID,
		Payload:    ChannelEventPayload{ChannelID: channelID, UserID: userID},
	}
}

func NewVoiceParticipantsEnvelope(channelID uint, participants []VoiceParticipantInfo) *Envelope {
	return &Envelope{
		Type:      EventVoiceParticipants,
		ChannelID: channelID,
		Payload:   VoiceParticipantsPayload{Participants: participants},
	}
}
