package liveness

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meshnetlabs/ethermesh/config"
)

// Sender is the transmit adapter: one synchronous "send one frame" operation
// with multiple implementations (UDP multicast, raw Ethernet). Failures are
// transient; the lease task tolerates them and the next scheduled send
// retries. The lease task depends only on this operation, never on the
// implementation behind it.
type Sender interface {
	Send(payload []byte) error
	Close() error
}

// TransportConfig configures a multicast Transport.
type TransportConfig struct {
	Logger *slog.Logger
	Sender Sender

	// LocalID identifies this peer in JOIN and KEEP_ALIVE frames.
	LocalID PeerID

	// Lease is the lease advertised in our JOIN frames, and the keep-alive
	// cadence floor while the peer table is empty.
	Lease time.Duration

	// Locators advertised in JOIN frames.
	Locators []string
}

// Validate fills defaults and enforces constraints for TransportConfig.
func (c *TransportConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Sender == nil {
		return errors.New("sender is required")
	}
	if len(c.LocalID) == 0 || len(c.LocalID) > maxPeerIDLen {
		return errors.New("local id must be 1..16 bytes")
	}
	if c.Lease == 0 {
		c.Lease = config.DefaultLease
	}
	if c.Lease < 0 {
		return errors.New("lease must be greater than 0")
	}
	return nil
}

// Transport is the per-group multicast transport state: the peer table, the
// local lease, and the transmitted flag cleared by the lease task on each
// keep-alive tick. A single mutex guards the table, its entries' mutable
// fields, and the transmitted flag; the receive path and the lease task take
// the same mutex.
type Transport struct {
	log      *slog.Logger
	sender   Sender
	localID  PeerID
	lease    time.Duration
	locators []string

	mu          sync.Mutex
	peers       *PeerTable
	transmitted bool
}

// NewTransport builds a Transport around a Sender.
func NewTransport(cfg *TransportConfig) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating transport config: %w", err)
	}
	return &Transport{
		log:      cfg.Logger,
		sender:   cfg.Sender,
		localID:  cfg.LocalID,
		lease:    cfg.Lease,
		locators: cfg.Locators,
		peers:    NewPeerTable(),
	}, nil
}

// LocalID returns this peer's identity.
func (t *Transport) LocalID() PeerID { return t.localID }

// Lease returns the locally advertised lease.
func (t *Transport) Lease() time.Duration { return t.lease }

// sendFrame marshals and transmits one frame. No locking, no flag updates.
func (t *Transport) sendFrame(f *Frame) error {
	b, err := f.Marshal()
	if err != nil {
		return err
	}
	if err := t.sender.Send(b); err != nil {
		metricSendErrors.Inc()
		return err
	}
	metricFramesTX.WithLabelValues(f.Type.String()).Inc()
	return nil
}

// sendJoinLocked emits a JOIN announcing our identity, lease and locators.
// Caller holds t.mu.
func (t *Transport) sendJoinLocked() error {
	return t.sendFrame(&Frame{
		Type:     FrameJoin,
		PeerID:   t.localID,
		Lease:    t.lease,
		Locators: t.locators,
	})
}

// sendKeepAliveLocked emits an empty keep-alive. Caller holds t.mu. The
// transmitted flag is left alone; the lease task resets it on every
// keep-alive tick regardless of the send outcome.
func (t *Transport) sendKeepAliveLocked() error {
	return t.sendFrame(&Frame{Type: FrameKeepAlive, PeerID: t.localID})
}

// SendJoin announces the local peer on the group and marks the keep-alive
// window as served.
func (t *Transport) SendJoin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.sendJoinLocked()
	t.transmitted = true
	return err
}

// SendKeepAlive emits one keep-alive frame. Exposed for tests and alternate
// schedulers; the lease task uses the same path internally.
func (t *Transport) SendKeepAlive() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sendKeepAliveLocked()
}

// Send transmits an opaque data payload from a neighbouring subsystem.
// A successful send marks the current keep-alive window as served, so the
// lease task will not emit a redundant keep-alive.
func (t *Transport) Send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.sendFrame(&Frame{Type: FrameData, PeerID: t.localID, Payload: payload}); err != nil {
		return err
	}
	t.transmitted = true
	return nil
}

// AdmitPeer inserts a peer on its first valid JOIN, or renews it when
// already known. Called from the receive path.
func (t *Transport) AdmitPeer(id PeerID, lease time.Duration, locators []string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.peers.Get(id); ok {
		e.Received = true
		e.Locators = locators
		return
	}
	// A fresh entry starts with a full window and Received unset: the
	// admission frame opened the window, and the peer has the whole lease
	// to be heard again.
	t.peers.Insert(&PeerEntry{
		ID:         id,
		Lease:      lease,
		NextLease:  lease,
		Locators:   locators,
		AdmittedAt: now,
	})
	metricPeersAdmitted.Inc()
	metricPeers.Set(float64(t.peers.Len()))
	t.log.Info("liveness.transport: peer admitted", "peer", id, "lease", lease)
}

// MarkReceived flags a known peer as heard since the last expiry sweep.
// Returns false for peers not in the table.
func (t *Transport) MarkReceived(id PeerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.peers.Get(id)
	if !ok {
		return false
	}
	e.Received = true
	return true
}

// PeerSnapshot is a copy of one peer entry taken under the peer mutex.
type PeerSnapshot struct {
	ID         PeerID
	Lease      time.Duration
	NextLease  time.Duration
	Received   bool
	Locators   []string
	AdmittedAt time.Time
}

// Peers returns a point-in-time copy of the peer table.
func (t *Transport) Peers() []PeerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PeerSnapshot, 0, t.peers.Len())
	t.peers.ForEach(func(e *PeerEntry) {
		out = append(out, PeerSnapshot{
			ID:         e.ID,
			Lease:      e.Lease,
			NextLease:  e.NextLease,
			Received:   e.Received,
			Locators:   append([]string(nil), e.Locators...),
			AdmittedAt: e.AdmittedAt,
		})
	})
	return out
}

// Close releases the transmit adapter.
func (t *Transport) Close() error {
	return t.sender.Close()
}
