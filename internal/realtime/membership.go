package realtime

import "sync"

// Membership tracks which users have joined which channels during their
// current session, with a reverse index for fast cleanup on disconnect. It is
// transport-independent and knows nothing about the durable channel ACL.
type Membership struct {
	mu sync.RWMutex

	// channelUsers maps channel id to the set of subscribed user ids.
	channelUsers map[uint]map[uint]bool

	// userChannels is the reverse index, user id to subscribed channel ids.
	userChannels map[uint]map[uint]bool
}

func NewMembership() *Membership {
	return &Membership{
		channelUsers: make(map[uint]map[uint]bool),
		userChannels: make(map[uint]map[uint]bool),
	}
}

// Join subscribes userID to channelID. Idempotent; reports whether the
// subscription is new.
func (m *Membership) Join(channelID, userID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channelUsers[channelID] == nil {
		m.channelUsers[channelID] = make(map[uint]bool)
	}
	if m.channelUsers[channelID][userID] {
		return false
	}
	m.channelUsers[channelID][userID] = true

	if m.userChannels[userID] == nil {
		m.userChannels[userID] = make(map[uint]bool)
	}
	m.userChannels[userID][channelID] = true
	return true
}

// Leave removes the subscription. Idempotent; reports whether a subscription
// existed. The last member leaving deletes the in-memory channel entry.
func (m *Membership) Leave(channelID, userID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.leaveLocked(channelID, userID)
}

func (m *Membership) leaveLocked(channelID, userID uint) bool {
	users, ok := m.channelUsers[channelID]
	if !ok || !users[userID] {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(m.channelUsers, channelID)
	}

	if channels, ok := m.userChannels[userID]; ok {
		delete(channels, channelID)
		if len(channels) == 0 {
			delete(m.userChannels, userID)
		}
	}
	return true
}

// DropUser removes userID from every channel and returns the channels it was
// subscribed to, for the caller to announce departures.
func (m *Membership) DropUser(userID uint) []uint {
	m.mu.Lock()
	defer m.mu.Unlock()

	channels := make([]uint, 0, len(m.userChannels[userID]))
	for channelID := range m.userChannels[userID] {
		channels = append(channels, channelID)
	}
	for _, channelID := range channels {
		m.leaveLocked(channelID, userID)
	}
	return channels
}

// MembersOf returns the user ids currently subscribed to channelID.
func (m *Membership) MembersOf(channelID uint) []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users, ok := m.channelUsers[channelID]
	if !ok {
		return nil
	}
	members := make([]uint, 0, len(users))
	for userID := range users {
		members = append(members, userID)
	}
	return members
}

// ChannelsOf returns the channel ids userID is currently subscribed to.
func (m *Membership) ChannelsOf(userID uint) []uint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels, ok := m.userChannels[userID]
	if !ok {
		return nil
	}
	result := make([]uint, 0, len(channels))
	for channelID := range channels {
		result = append(result, channelID)
	}
	return result
}

// IsSubscribed reports whether userID holds a session subscription to
// channelID.
func (m *Membership) IsSubscribed(channelID, userID uint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.channelUsers[channelID][userID]
}
