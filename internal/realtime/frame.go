package realtime

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// FrameType tags an inbound control frame.
type FrameType string

const (
	FrameJoinChannel    FrameType = "join_channel"
	FrameLeaveChannel   FrameType = "leave_channel"
	FrameMessage        FrameType = "message"
	FrameAddReaction    FrameType = "add_reaction"
	FrameRemoveReaction FrameType = "remove_reaction"
	FrameStatusUpdate   FrameType = "status_update"
	FrameVoiceJoin      FrameType = "voice_join"
	FrameVoiceLeave     FrameType = "voice_leave"
	FrameVoiceState     FrameType = "voice_state"
	FramePing           FrameType = "ping"
)

var validate = validator.New()

type JoinChannelFrame struct {
	ChannelID uint `json:"channel_id" validate:"required"`
}

type LeaveChannelFrame struct {
	ChannelID uint `json:"channel_id" validate:"required"`
}

type MessageFrame struct {
	ChannelID uint   `json:"channel_id" validate:"required"`
	Content   string `json:"content" validate:"required,min=1,max=4096"`
}

type ReactionFrame struct {
	ChannelID uint   `json:"channel_id" validate:"required"`
	MessageID uint   `json:"message_id" validate:"required"`
	Emoji     string `json:"emoji" validate:"required,max=64"`
}

type StatusUpdateFrame struct {
	Status string `json:"status" validate:"required"`
}

type VoiceJoinFrame struct {
	ChannelID uint `json:"channel_id" validate:"required"`
}

type VoiceStateFrame struct {
	ChannelID uint `json:"channel_id" validate:"required"`
	Muted     bool `json:"muted"`
	Speaking  bool `json:"speaking"`
}

// decodeFrame unmarshals raw into dst and applies the struct's validate tags.
func decodeFrame(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return newValidationError("INVALID_FRAME", "malformed frame payload")
	}
	if err := validate.Struct(dst); err != nil {
		return newValidationError("INVALID_FRAME", "frame failed validation: "+err.Error())
	}
	return nil
}

// frameType extracts the tag of an inbound text frame without committing to a
// payload shape.
func frameType(raw []byte) (FrameType, error) {
	var probe struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", newValidationError("INVALID_FRAME", "malformed JSON frame")
	}
	if probe.Type == "" {
		return "", newValidationError("INVALID_FRAME", "frame is missing a type")
	}
	return probe.Type, nil
}
