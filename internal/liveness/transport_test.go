package liveness

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, sender Sender, lease time.Duration) *Transport {
	t.Helper()
	tr, err := NewTransport(&TransportConfig{
		Logger:   newTestLogger(t),
		Sender:   sender,
		LocalID:  PeerID("local-01"),
		Lease:    lease,
		Locators: []string{"udp/239.76.83.1:7465"},
	})
	require.NoError(t, err)
	return tr
}

func TestLiveness_Transport_ConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := NewTransport(&TransportConfig{Sender: &recordingSender{}, LocalID: PeerID("x")})
	require.ErrorContains(t, err, "logger is required")

	_, err = NewTransport(&TransportConfig{Logger: newTestLogger(t), LocalID: PeerID("x")})
	require.ErrorContains(t, err, "sender is required")

	_, err = NewTransport(&TransportConfig{Logger: newTestLogger(t), Sender: &recordingSender{}})
	require.ErrorContains(t, err, "local id")

	// Zero lease defaults rather than failing.
	tr, err := NewTransport(&TransportConfig{Logger: newTestLogger(t), Sender: &recordingSender{}, LocalID: PeerID("x")})
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, tr.Lease())
}

func TestLiveness_Transport_SendJoinCarriesIdentity(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	tr := newTestTransport(t, sender, 10*time.Second)

	require.NoError(t, tr.SendJoin())

	frames := sender.all()
	require.Len(t, frames, 1)
	require.Equal(t, FrameJoin, frames[0].Type)
	require.Equal(t, PeerID("local-01"), frames[0].PeerID)
	require.Equal(t, 10*time.Second, frames[0].Lease)
	require.Equal(t, []string{"udp/239.76.83.1:7465"}, frames[0].Locators)
	require.True(t, tr.transmitted)
}

func TestLiveness_Transport_SendKeepAliveLeavesTransmittedAlone(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	tr := newTestTransport(t, sender, 10*time.Second)

	require.NoError(t, tr.SendKeepAlive())
	require.Equal(t, 1, sender.count(FrameKeepAlive))
	require.False(t, tr.transmitted)
}

func TestLiveness_Transport_SendMarksTransmittedOnSuccessOnly(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	tr := newTestTransport(t, sender, 10*time.Second)

	require.NoError(t, tr.Send([]byte("payload")))
	require.True(t, tr.transmitted)
	require.Equal(t, 1, sender.count(FrameData))

	tr.transmitted = false
	sender.setErr(errors.New("medium unreachable"))
	require.Error(t, tr.Send([]byte("payload")))
	require.False(t, tr.transmitted)
}

func TestLiveness_Transport_AdmitAndMarkReceived(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(t, &recordingSender{}, 10*time.Second)
	now := time.Now()

	tr.AdmitPeer(PeerID("peer-a"), 4*time.Second, []string{"udp/x"}, now)
	peers := tr.Peers()
	require.Len(t, peers, 1)
	require.Equal(t, 4*time.Second, peers[0].Lease)
	require.Equal(t, 4*time.Second, peers[0].NextLease)
	require.False(t, peers[0].Received)

	// Re-admission of a known peer refreshes rather than duplicating.
	tr.AdmitPeer(PeerID("peer-a"), 4*time.Second, []string{"udp/y"}, now)
	peers = tr.Peers()
	require.Len(t, peers, 1)
	require.True(t, peers[0].Received)
	require.Equal(t, []string{"udp/y"}, peers[0].Locators)

	require.False(t, tr.MarkReceived(PeerID("stranger")))
	require.True(t, tr.MarkReceived(PeerID("peer-a")))
}
