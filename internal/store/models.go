package store

import "time"

// User mirrors the users table owned by the account service. Only the columns
// this subsystem reads are mapped.
type User struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"size:255"`
}

// Channel is a durable chat channel. Members is the permission list checked
// at join time; public channels skip the check.
type Channel struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"size:255;not null"`
	IsPublic bool   `gorm:"default:true"`
	IsVoice  bool   `gorm:"default:false"`
	Members  []User `gorm:"many2many:channel_members"`

	CreatedAt time.Time
}

// Message is a persisted chat message. Broadcast payloads carry the id
// assigned here so clients can reconcile against history fetched over REST.
type Message struct {
	ID        uint   `gorm:"primaryKey"`
	ChannelID uint   `gorm:"index;not null"`
	SenderID  uint   `gorm:"index;not null"`
	Content   string `gorm:"type:text;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reaction is one user's emoji reaction to a message. The uniqueness
// constraint makes add idempotent per (message, user, emoji).
type Reaction struct {
	ID        uint   `gorm:"primaryKey"`
	MessageID uint   `gorm:"uniqueIndex:idx_reaction;not null"`
	UserID    uint   `gorm:"uniqueIndex:idx_reaction;not null"`
	Emoji     string `gorm:"uniqueIndex:idx_reaction;size:64;not null"`

	CreatedAt time.Time
}
