package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLiveness_Frame_JoinRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Frame{
		Type:     FrameJoin,
		PeerID:   PeerID("peer-one"),
		Lease:    10 * time.Second,
		Locators: []string{"udp/239.76.83.1:7465", "reth/eth0"},
	}
	b, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalFrame(b)
	require.NoError(t, err)
	require.Equal(t, FrameJoin, out.Type)
	require.Equal(t, in.PeerID, out.PeerID)
	require.Equal(t, in.Lease, out.Lease)
	require.Equal(t, in.Locators, out.Locators)
}

func TestLiveness_Frame_KeepAliveRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Frame{Type: FrameKeepAlive, PeerID: PeerID("p")}
	b, err := in.Marshal()
	require.NoError(t, err)
	require.Len(t, b, 3) // header + 1-byte id, empty payload

	out, err := UnmarshalFrame(b)
	require.NoError(t, err)
	require.Equal(t, FrameKeepAlive, out.Type)
	require.Equal(t, in.PeerID, out.PeerID)
	require.Zero(t, out.Lease)
	require.Nil(t, out.Locators)
}

func TestLiveness_Frame_DataRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Frame{Type: FrameData, PeerID: PeerID("peer-one"), Payload: []byte("hello")}
	b, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalFrame(b)
	require.NoError(t, err)
	require.Equal(t, FrameData, out.Type)
	require.Equal(t, []byte("hello"), out.Payload)
}

func TestLiveness_Frame_MarshalRejectsBadPeerID(t *testing.T) {
	t.Parallel()

	_, err := (&Frame{Type: FrameKeepAlive}).Marshal()
	require.ErrorIs(t, err, ErrBadPeerID)

	_, err = (&Frame{Type: FrameKeepAlive, PeerID: PeerID("seventeen-bytes-x")}).Marshal()
	require.ErrorIs(t, err, ErrBadPeerID)
}

func TestLiveness_Frame_MarshalRejectsBadType(t *testing.T) {
	t.Parallel()

	_, err := (&Frame{Type: FrameType(9), PeerID: PeerID("p")}).Marshal()
	require.ErrorIs(t, err, ErrBadFrameType)
}

func TestLiveness_Frame_UnmarshalRejectsShort(t *testing.T) {
	t.Parallel()

	_, err := UnmarshalFrame(nil)
	require.ErrorIs(t, err, ErrShortFrame)

	_, err = UnmarshalFrame([]byte{(frameVersion << 5) | byte(FrameKeepAlive)})
	require.ErrorIs(t, err, ErrShortFrame)

	// Header claims a 4-byte id but only 2 bytes follow.
	_, err = UnmarshalFrame([]byte{(frameVersion << 5) | byte(FrameKeepAlive), 4, 'a', 'b'})
	require.ErrorIs(t, err, ErrShortFrame)

	// JOIN truncated inside the lease field.
	join := []byte{(frameVersion << 5) | byte(FrameJoin), 1, 'a', 0x00}
	_, err = UnmarshalFrame(join)
	require.ErrorIs(t, err, ErrShortFrame)
}

func TestLiveness_Frame_UnmarshalRejectsBadVersion(t *testing.T) {
	t.Parallel()

	_, err := UnmarshalFrame([]byte{(2 << 5) | byte(FrameKeepAlive), 1, 'a'})
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestLiveness_Frame_UnmarshalRejectsTruncatedLocator(t *testing.T) {
	t.Parallel()

	in := &Frame{
		Type:     FrameJoin,
		PeerID:   PeerID("p"),
		Lease:    time.Second,
		Locators: []string{"udp/239.76.83.1:7465"},
	}
	b, err := in.Marshal()
	require.NoError(t, err)

	_, err = UnmarshalFrame(b[:len(b)-3])
	require.ErrorIs(t, err, ErrBadLocator)
}
