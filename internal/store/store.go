// Package store is the relational collaborator: the durable channel ACL and
// message/reaction persistence the realtime core calls into.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrChannelNotFound = errors.New("channel not found")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// IsPublic reports whether channelID is a public channel anyone may join.
func (s *Store) IsPublic(ctx context.Context, channelID uint) (bool, error) {
	var channel Channel
	err := s.db.WithContext(ctx).Select("id", "is_public").First(&channel, channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrChannelNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load channel %d: %w", channelID, err)
	}
	return channel.IsPublic, nil
}

// IsMember reports whether userID is on channelID's durable member list.
func (s *Store) IsMember(ctx context.Context, channelID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("channel_members").
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check membership of user %d in channel %d: %w", userID, channelID, err)
	}
	return count > 0, nil
}

// SaveMessage persists a chat message and returns its durable id.
func (s *Store) SaveMessage(ctx context.Context, channelID, senderID uint, content string) (uint, error) {
	message := Message{
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return 0, fmt.Errorf("save message in channel %d: %w", channelID, err)
	}
	return message.ID, nil
}

// AddReaction records an emoji reaction. Adding the same reaction twice is a
// no-op thanks to the unique index.
func (s *Store) AddReaction(ctx context.Context, messageID, userID uint, emoji string) error {
	reaction := Reaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	}
	err := s.db.WithContext(ctx).
		Where(Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}).
		FirstOrCreate(&reaction).Error
	if err != nil {
		return fmt.Errorf("add reaction to message %d: %w", messageID, err)
	}
	return nil
}

// RemoveReaction deletes an emoji reaction. Idempotent.
func (s *Store) RemoveReaction(ctx context.Context, messageID, userID uint, emoji string) error {
	err := s.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&Reaction{}).Error
	if err != nil {
		return fmt.Errorf("remove reaction from message %d: %w", messageID, err)
	}
	return nil
}
