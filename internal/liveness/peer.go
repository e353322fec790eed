package liveness

import (
	"math"
	"time"
)

// PeerEntry is the per-peer record in the peer table: the advertised lease,
// the remaining lease window, and whether the peer has been heard since the
// last expiry sweep. Locators and SN are owned by neighbouring subsystems
// and opaque to the lease task.
type PeerEntry struct {
	ID PeerID

	// Lease is the maximum interval the peer promised between its
	// transmissions. Immutable after admission.
	Lease time.Duration

	// NextLease is the time remaining in the current lease window.
	// 0 <= NextLease <= Lease except transiently during a tick.
	NextLease time.Duration

	// Received is set by the receive path on any valid frame from this peer
	// and cleared by the lease task when it renews the window.
	Received bool

	Locators   []string
	SN         uint32
	AdmittedAt time.Time
}

// PeerTable holds the known remote peers keyed by identity. It carries no
// mutex of its own: every access, including reads and writes of an entry's
// Received/NextLease fields, must happen with the owning Transport's peer
// mutex held. The receive path takes the same mutex.
type PeerTable struct {
	entries map[PeerID]*PeerEntry
}

func NewPeerTable() *PeerTable {
	return &PeerTable{entries: make(map[PeerID]*PeerEntry)}
}

// Insert adds an entry. The caller guarantees identity uniqueness.
func (pt *PeerTable) Insert(e *PeerEntry) {
	pt.entries[e.ID] = e
}

func (pt *PeerTable) Get(id PeerID) (*PeerEntry, bool) {
	e, ok := pt.entries[id]
	return e, ok
}

func (pt *PeerTable) Len() int {
	return len(pt.entries)
}

// ForEach visits every entry once. Mutating the visited entry is allowed;
// inserting or removing other entries is not.
func (pt *PeerTable) ForEach(fn func(*PeerEntry)) {
	for _, e := range pt.entries {
		fn(e)
	}
}

// RemoveWhere removes every entry for which pred returns true and reports
// how many were removed. Surviving entries are untouched, and every
// survivor is visited exactly once even when the current entry is removed
// mid-sweep.
func (pt *PeerTable) RemoveWhere(pred func(*PeerEntry) bool) int {
	removed := 0
	for id, e := range pt.entries {
		if pred(e) {
			delete(pt.entries, id)
			removed++
		}
	}
	return removed
}

// MinimumLease returns the smallest advertised lease among all peers, or
// local when the table is empty. The keep-alive cadence derives from this:
// we must be heard within the shortest window any peer will tolerate, and
// the local lease keeps the cadence meaningful for observers that may admit
// us later.
func (pt *PeerTable) MinimumLease(local time.Duration) time.Duration {
	if len(pt.entries) == 0 {
		return local
	}
	min := time.Duration(math.MaxInt64)
	for _, e := range pt.entries {
		if e.Lease < min {
			min = e.Lease
		}
	}
	return min
}

// NextLease returns the smallest remaining lease window across peers, or
// the representable maximum when the table is empty (no peer will expire
// soon).
func (pt *PeerTable) NextLease() time.Duration {
	next := time.Duration(math.MaxInt64)
	for _, e := range pt.entries {
		if e.NextLease < next {
			next = e.NextLease
		}
	}
	return next
}

// DecrementAll shrinks every entry's remaining window by interval. The
// result may transiently go non-positive; the next expiry sweep settles it.
func (pt *PeerTable) DecrementAll(interval time.Duration) {
	for _, e := range pt.entries {
		e.NextLease -= interval
	}
}
