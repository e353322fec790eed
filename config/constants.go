package config

import "time"

const (
	// DefaultJoinInterval is the interval between JOIN announcements on the
	// multicast group. Independent of lease negotiation.
	DefaultJoinInterval = 2500 * time.Millisecond

	// LeaseExpireFactor divides the smallest known lease to derive the local
	// keep-alive cadence. Must be >= 2 so peers get several chances to hear
	// us before expiring our lease.
	LeaseExpireFactor = 4

	// DefaultLease is the lease this peer advertises in its own JOIN frames:
	// the maximum interval observers should tolerate between our transmissions.
	DefaultLease = 10 * time.Second

	// DefaultGroupIP and DefaultGroupPort identify the UDP multicast group
	// used for liveness traffic when no group is configured.
	DefaultGroupIP   = "239.76.83.1"
	DefaultGroupPort = 7465

	// DefaultTTL matches the tunnel TTL configured on mesh devices.
	DefaultTTL = 32
)
