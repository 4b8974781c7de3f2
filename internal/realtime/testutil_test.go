package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var errConnClosed = errors.New("connection closed")

const (
	waitTimeout  = 2 * time.Second
	pollInterval = 5 * time.Millisecond
)

type mockFrame struct {
	messageType int
	data        []byte
}

// mockConn is an in-memory Conn. Inbound frames are injected through a
// channel; written frames are recorded for assertions.
type mockConn struct {
	mu      sync.Mutex
	written []mockFrame

	inbound   chan mockFrame
	closed    chan struct{}
	closeOnce sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		inbound: make(chan mockFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-m.inbound:
		return frame.messageType, frame.data, nil
	case <-m.closed:
		return 0, nil, errConnClosed
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-m.closed:
		return errConnClosed
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, mockFrame{messageType: messageType, data: data})
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConn) SetReadLimit(int64) {}

func (m *mockConn) SetReadDeadline(time.Time) error { return nil }

func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }

func (m *mockConn) SetPongHandler(func(string) error) {}

func (m *mockConn) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// inject feeds an inbound text frame, as if the peer had sent it.
func (m *mockConn) inject(data string) {
	m.inbound <- mockFrame{messageType: websocket.TextMessage, data: []byte(data)}
}

// injectBinary feeds an inbound audio frame.
func (m *mockConn) injectBinary(data []byte) {
	m.inbound <- mockFrame{messageType: websocket.BinaryMessage, data: data}
}

// recvEnvelope is the decoded shape of a written text frame.
type recvEnvelope struct {
	Type       string          `json:"type"`
	ChannelID  uint            `json:"channel_id"`
	FromUserID uint            `json:"from_user_id"`
	Payload    json.RawMessage `json:"payload"`
}

// envelopes returns every text frame written so far, decoded.
func (m *mockConn) envelopes(t *testing.T) []recvEnvelope {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []recvEnvelope
	for _, frame := range m.written {
		if frame.messageType != websocket.TextMessage {
			continue
		}
		var env recvEnvelope
		require.NoError(t, json.Unmarshal(frame.data, &env))
		result = append(result, env)
	}
	return result
}

// binaryFrames returns every binary frame written so far.
func (m *mockConn) binaryFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result [][]byte
	for _, frame := range m.written {
		if frame.messageType == websocket.BinaryMessage {
			result = append(result, frame.data)
		}
	}
	return result
}

func (m *mockConn) countType(t *testing.T, eventType EventType) int {
	t.Helper()
	count := 0
	for _, env := range m.envelopes(t) {
		if env.Type == string(eventType) {
			count++
		}
	}
	return count
}

// waitForType blocks until the connection has received at least n frames of
// the given type.
func (m *mockConn) waitForType(t *testing.T, eventType EventType, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.countType(t, eventType) >= n
	}, waitTimeout, pollInterval, "expected %d %s frames", n, eventType)
}

// reset discards recorded frames so assertions can scope to what follows.
func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = nil
}

// fakeDirectory is an in-memory ChannelDirectory.
type fakeDirectory struct {
	mu      sync.Mutex
	public  map[uint]bool
	members map[uint]map[uint]bool
	err     error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		public:  make(map[uint]bool),
		members: make(map[uint]map[uint]bool),
	}
}

func (d *fakeDirectory) addPublic(channelID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.public[channelID] = true
}

func (d *fakeDirectory) addPrivate(channelID uint, memberIDs ...uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[channelID] = make(map[uint]bool)
	for _, id := range memberIDs {
		d.members[channelID][id] = true
	}
}

func (d *fakeDirectory) IsPublic(_ context.Context, channelID uint) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.public[channelID], nil
}

func (d *fakeDirectory) IsMember(_ context.Context, channelID, userID uint) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.members[channelID][userID], nil
}

// fakeMessages is an in-memory MessageStore handing out sequential ids.
type fakeMessages struct {
	mu        sync.Mutex
	nextID    uint
	saved     []string
	reactions map[string]bool
	err       error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{nextID: 1, reactions: make(map[string]bool)}
}

func (s *fakeMessages) SaveMessage(_ context.Context, channelID, senderID uint, content string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	id := s.nextID
	s.nextID++
	s.saved = append(s.saved, content)
	return id, nil
}

func (s *fakeMessages) AddReaction(_ context.Context, messageID, userID uint, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reactions[fmt.Sprintf("%d/%d/%s", messageID, userID, emoji)] = true
	return nil
}

func (s *fakeMessages) RemoveReaction(_ context.Context, messageID, userID uint, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.reactions, fmt.Sprintf("%d/%d/%s", messageID, userID, emoji))
	return nil
}

// fakeSink records published envelopes.
type fakeSink struct {
	mu     sync.Mutex
	events []*Envelope
}

func (f *fakeSink) Publish(_ context.Context, env *Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, env)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// newTestHub builds a running hub over fakes and stops it on cleanup.
func newTestHub(t *testing.T, directory *fakeDirectory, messages *fakeMessages, opts ...Option) *Hub {
	t.Helper()
	hub := NewHub(directory, messages, opts...)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// connectClient registers a new client over a mockConn with both pumps
// running, and waits until the hub has it online.
func connectClient(t *testing.T, hub *Hub, userID uint) (*Client, *mockConn) {
	t.Helper()
	conn := newMockConn()
	client := NewClient(hub, conn, userID)

	select {
	case hub.register <- client:
	case <-time.After(time.Second):
		t.Fatal("timeout registering client")
	}

	go client.writePump()
	go client.readPump()

	require.Eventually(t, func() bool {
		current, ok := hub.registry.Lookup(userID)
		return ok && current == client
	}, time.Second, 5*time.Millisecond)

	return client, conn
}

// joinChannel drives a join_channel frame and waits for the confirmation.
func joinChannel(t *testing.T, conn *mockConn, channelID uint) {
	t.Helper()
	before := conn.countType(t, EventChannelJoined)
	conn.inject(fmt.Sprintf(`{"type":"join_channel","channel_id":%d}`, channelID))
	conn.waitForType(t, EventChannelJoined, before+1)
}
