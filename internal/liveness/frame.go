package liveness

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// FrameType distinguishes the liveness frames exchanged on the group.
type FrameType uint8

const (
	FrameJoin      FrameType = 1 // announce identity, lease and locators
	FrameKeepAlive FrameType = 2 // empty-payload lease refresh
	FrameData      FrameType = 3 // opaque payload from neighbouring subsystems
)

func (t FrameType) String() string {
	switch t {
	case FrameJoin:
		return "join"
	case FrameKeepAlive:
		return "keep_alive"
	case FrameData:
		return "data"
	}
	return fmt.Sprintf("unknown(%d)", t)
}

// PeerID is an opaque peer identity, equality-comparable and usable as a map key.
type PeerID string

func (id PeerID) String() string {
	return hex.EncodeToString([]byte(id))
}

const (
	frameVersion = 1

	maxPeerIDLen  = 16
	maxLocatorLen = 255
)

// Frame represents one liveness message on the wire.
// Lease and Locators are meaningful for JOIN only; Payload for DATA only.
type Frame struct {
	Type     FrameType
	PeerID   PeerID
	Lease    time.Duration
	Locators []string
	Payload  []byte
}

// Marshal serializes a Frame into its wire format.
//
// Field layout (Big Endian):
//
//	0: Version (3 high bits) | FrameType (5 low bits)
//	1: peer id length (1..16)
//	2..2+idLen: peer id
//
// JOIN continues with:
//
//	+0..3: advertised lease in milliseconds
//	+4:    locator count
//	per locator: 1-byte length followed by the locator bytes
//
// DATA continues with the raw payload. KEEP_ALIVE carries nothing further.
func (f *Frame) Marshal() ([]byte, error) {
	idLen := len(f.PeerID)
	if idLen == 0 || idLen > maxPeerIDLen {
		return nil, fmt.Errorf("%w: length %d", ErrBadPeerID, idLen)
	}

	b := make([]byte, 0, 2+idLen+8)
	b = append(b, (frameVersion&0x7)<<5|uint8(f.Type)&0x1f, uint8(idLen))
	b = append(b, f.PeerID...)

	switch f.Type {
	case FrameJoin:
		b = binary.BigEndian.AppendUint32(b, uint32(f.Lease/time.Millisecond))
		if len(f.Locators) > 255 {
			return nil, fmt.Errorf("%w: %d locators", ErrBadLocator, len(f.Locators))
		}
		b = append(b, uint8(len(f.Locators)))
		for _, loc := range f.Locators {
			if len(loc) == 0 || len(loc) > maxLocatorLen {
				return nil, fmt.Errorf("%w: length %d", ErrBadLocator, len(loc))
			}
			b = append(b, uint8(len(loc)))
			b = append(b, loc...)
		}
	case FrameKeepAlive:
	case FrameData:
		b = append(b, f.Payload...)
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadFrameType, f.Type)
	}
	return b, nil
}

// UnmarshalFrame parses a wire buffer into a Frame. It validates the version
// and every length field before reading the section that field covers; an
// unknown frame type is rejected once the peer id has been read.
func UnmarshalFrame(b []byte) (*Frame, error) {
	if len(b) < 2 {
		return nil, ErrShortFrame
	}
	if ver := (b[0] >> 5) & 0x7; ver != frameVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, ver)
	}
	typ := FrameType(b[0] & 0x1f)

	idLen := int(b[1])
	if idLen == 0 || idLen > maxPeerIDLen {
		return nil, fmt.Errorf("%w: length %d", ErrBadPeerID, idLen)
	}
	if len(b) < 2+idLen {
		return nil, ErrShortFrame
	}
	f := &Frame{
		Type:   typ,
		PeerID: PeerID(b[2 : 2+idLen]),
	}
	rest := b[2+idLen:]

	switch typ {
	case FrameJoin:
		if len(rest) < 5 {
			return nil, ErrShortFrame
		}
		f.Lease = time.Duration(binary.BigEndian.Uint32(rest[:4])) * time.Millisecond
		n := int(rest[4])
		rest = rest[5:]
		for i := 0; i < n; i++ {
			if len(rest) < 1 {
				return nil, ErrShortFrame
			}
			l := int(rest[0])
			if l == 0 || len(rest) < 1+l {
				return nil, fmt.Errorf("%w: truncated", ErrBadLocator)
			}
			f.Locators = append(f.Locators, string(rest[1:1+l]))
			rest = rest[1+l:]
		}
	case FrameKeepAlive:
	case FrameData:
		if len(rest) > 0 {
			f.Payload = append([]byte(nil), rest...)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadFrameType, typ)
	}
	return f, nil
}
