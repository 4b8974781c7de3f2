package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type voiceFixture struct {
	registry *Registry
	relay    *VoiceRelay
}

func newVoiceFixture() *voiceFixture {
	f := &voiceFixture{registry: NewRegistry()}
	f.relay = NewVoiceRelay(f.registry)
	return f
}

func (f *voiceFixture) attach(t *testing.T, userID uint) (*Client, *mockConn) {
	t.Helper()
	conn := newMockConn()
	client := NewClient(nil, conn, userID)
	f.registry.Register(client)
	go client.writePump()
	t.Cleanup(client.terminate)
	return client, conn
}

func TestVoiceJoinSendsSnapshotAndAnnouncement(t *testing.T) {
	f := newVoiceFixture()
	_, connA := f.attach(t, 1)
	_, connB := f.attach(t, 2)

	f.relay.Join(100, 1)

	connA.waitForType(t, EventVoiceParticipants, 1)
	connA.reset()

	f.relay.Join(100, 2)

	// The new joiner gets the snapshot, including itself.
	connB.waitForType(t, EventVoiceParticipants, 1)
	envs := connB.envelopes(t)
	require.Len(t, envs, 1)
	var payload VoiceParticipantsPayload
	require.NoError(t, json.Unmarshal(envs[0].Payload, &payload))
	require.Len(t, payload.Participants, 2)
	assert.Equal(t, uint(1), payload.Participants[0].UserID)
	assert.Equal(t, uint(2), payload.Participants[1].UserID)

	// The existing participant gets the join announcement, not a snapshot.
	connA.waitForType(t, EventVoiceJoin, 1)
	assert.Equal(t, 0, connA.countType(t, EventVoiceParticipants))
}

func TestVoiceJoinIsIdempotent(t *testing.T) {
	f := newVoiceFixture()
	_, conn := f.attach(t, 1)

	f.relay.Join(100, 1)
	conn.waitForType(t, EventVoiceParticipants, 1)

	f.relay.Join(100, 1)
	assert.Equal(t, 1, conn.countType(t, EventVoiceParticipants))
	assert.Equal(t, []uint{1}, f.relay.Participants(100))
}

func TestVoiceJoinSwitchesChannel(t *testing.T) {
	f := newVoiceFixture()
	f.attach(t, 1)
	_, connB := f.attach(t, 2)

	f.relay.Join(100, 1)
	f.relay.Join(100, 2)
	connB.waitForType(t, EventVoiceParticipants, 1)

	// Joining a second channel leaves the first implicitly.
	f.relay.Join(200, 1)

	connB.waitForType(t, EventVoiceLeave, 1)
	assert.Equal(t, []uint{2}, f.relay.Participants(100))
	assert.Equal(t, []uint{1}, f.relay.Participants(200))
}

func TestVoiceLeaveAnnouncesToRemaining(t *testing.T) {
	f := newVoiceFixture()
	f.attach(t, 1)
	_, connB := f.attach(t, 2)

	f.relay.Join(100, 1)
	f.relay.Join(100, 2)

	f.relay.Leave(1)

	connB.waitForType(t, EventVoiceLeave, 1)
	_, joined := f.relay.ParticipantState(100, 1)
	assert.False(t, joined)

	// Leaving twice is a no-op.
	f.relay.Leave(1)
	assert.Equal(t, 1, connB.countType(t, EventVoiceLeave))
}

func TestVoiceUpdateState(t *testing.T) {
	f := newVoiceFixture()
	f.attach(t, 1)
	_, connB := f.attach(t, 2)

	f.relay.Join(100, 1)
	f.relay.Join(100, 2)
	connB.reset()

	require.NoError(t, f.relay.UpdateState(1, true, false))

	connB.waitForType(t, EventVoiceState, 1)
	state, ok := f.relay.ParticipantState(100, 1)
	require.True(t, ok)
	assert.True(t, state.Muted)
	assert.False(t, state.Speaking)
}

func TestVoiceUpdateStateRequiresParticipation(t *testing.T) {
	f := newVoiceFixture()
	f.attach(t, 1)

	err := f.relay.UpdateState(1, true, false)
	assert.ErrorIs(t, err, ErrNotVoiceParticipant)
}

func TestVoiceStateNotEchoedToSender(t *testing.T) {
	f := newVoiceFixture()
	_, connA := f.attach(t, 1)

	f.relay.Join(100, 1)
	connA.reset()

	require.NoError(t, f.relay.UpdateState(1, false, true))
	assert.Equal(t, 0, connA.countType(t, EventVoiceState))
}

func TestRelayAudioReachesOtherParticipants(t *testing.T) {
	f := newVoiceFixture()
	_, connA := f.attach(t, 1)
	_, connB := f.attach(t, 2)
	_, connC := f.attach(t, 3)

	f.relay.Join(100, 1)
	f.relay.Join(100, 2)
	// User 3 is connected but not in voice.

	frame := []byte{0x01, 0x02, 0x03}
	f.relay.RelayAudio(1, frame)

	require.Eventually(t, func() bool {
		return len(connB.binaryFrames()) == 1
	}, waitTimeout, pollInterval)
	assert.Equal(t, frame, connB.binaryFrames()[0])
	assert.Empty(t, connA.binaryFrames(), "audio is never echoed to its sender")
	assert.Empty(t, connC.binaryFrames())
}

func TestRelayAudioDropsMutedSender(t *testing.T) {
	f := newVoiceFixture()
	f.attach(t, 1)
	_, connB := f.attach(t, 2)

	f.relay.Join(100, 1)
	f.relay.Join(100, 2)

	require.NoError(t, f.relay.UpdateState(1, true, false))
	f.relay.RelayAudio(1, []byte{0xaa})
	assert.Empty(t, connB.binaryFrames())

	// Unmuting restores the flow.
	require.NoError(t, f.relay.UpdateState(1, false, false))
	f.relay.RelayAudio(1, []byte{0xbb})
	require.Eventually(t, func() bool {
		return len(connB.binaryFrames()) == 1
	}, waitTimeout, pollInterval)
}

func TestRelayAudioFromNonParticipantIsDropped(t *testing.T) {
	f := newVoiceFixture()
	f.attach(t, 1)
	_, connB := f.attach(t, 2)

	f.relay.Join(100, 2)

	f.relay.RelayAudio(1, []byte{0xcc})
	assert.Empty(t, connB.binaryFrames())
}
