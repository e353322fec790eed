package liveness

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/meshnetlabs/ethermesh/config"
)

// TaskConfig configures the lease task.
type TaskConfig struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Transport *Transport

	// JoinInterval is the period between JOIN announcements.
	JoinInterval time.Duration

	// ExpireFactor divides the smallest known lease to derive the keep-alive
	// cadence. Must be >= 2.
	ExpireFactor int
}

// Validate fills defaults and enforces constraints for TaskConfig.
func (c *TaskConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Transport == nil {
		return errors.New("transport is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.JoinInterval == 0 {
		c.JoinInterval = config.DefaultJoinInterval
	}
	if c.JoinInterval < 0 {
		return errors.New("join interval must be greater than 0")
	}
	if c.ExpireFactor == 0 {
		c.ExpireFactor = config.LeaseExpireFactor
	}
	if c.ExpireFactor < 2 {
		return errors.New("expire factor must be at least 2")
	}
	return nil
}

// Task is the lease task: a long-running cooperative loop that owns the
// next_lease, next_keep_alive and next_join countdowns, sleeps until the
// earliest one expires, performs the associated action, and decrements the
// rest. It drives peer expiry and the locally emitted liveness traffic.
//
// The loop never terminates on a transient error; it exits only when the
// running flag is cleared by Stop, observed once per wake.
type Task struct {
	log          *slog.Logger
	clock        clockwork.Clock
	tr           *Transport
	joinInterval time.Duration
	expireFactor time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewTask builds a lease task bound to a transport.
func NewTask(cfg *TaskConfig) (*Task, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating task config: %w", err)
	}
	return &Task{
		log:          cfg.Logger,
		clock:        cfg.Clock,
		tr:           cfg.Transport,
		joinInterval: cfg.JoinInterval,
		expireFactor: time.Duration(cfg.ExpireFactor),
	}, nil
}

// Start sets the running flag and spawns the task goroutine. Starting a
// task that is already running fails with ErrTaskFailed and leaves the
// running instance untouched.
func (t *Task) Start() error {
	if !t.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: already running", ErrTaskFailed)
	}
	t.wg.Add(1)
	go t.run()
	return nil
}

// Stop clears the running flag and returns immediately; the task observes
// the flag at its next wake and exits. Safe to call more than once. Callers
// that need synchronous termination follow up with Wait.
func (t *Task) Stop() {
	t.running.Store(false)
}

// Wait blocks until the task goroutine has exited. After Wait returns the
// transport is safe to close.
func (t *Task) Wait() {
	t.wg.Wait()
}

// Running reports whether the task loop is active.
func (t *Task) Running() bool {
	return t.running.Load()
}

func (t *Task) run() {
	defer t.wg.Done()
	tr := t.tr

	tr.mu.Lock()
	tr.transmitted = false
	nextLease := tr.peers.MinimumLease(tr.lease)
	tr.mu.Unlock()
	nextKeepAlive := nextLease / t.expireFactor
	nextJoin := t.joinInterval

	t.log.Debug("liveness.task: started",
		"nextLease", nextLease, "nextKeepAlive", nextKeepAlive, "nextJoin", nextJoin)

	for t.running.Load() {
		metricTaskWakeups.Inc()
		tr.mu.Lock()

		// Expiry sweep first, so a peer removed here never receives the
		// join or keep-alive emitted below.
		if nextLease <= 0 {
			removed := tr.peers.RemoveWhere(func(e *PeerEntry) bool {
				if e.Received {
					e.Received = false
					e.NextLease = e.Lease
					return false
				}
				t.log.Info("liveness.task: peer expired", "peer", e.ID, "lease", e.Lease)
				return true
			})
			if removed > 0 {
				metricPeersExpired.Add(float64(removed))
				metricPeers.Set(float64(tr.peers.Len()))
			}
		}

		if nextJoin <= 0 {
			if err := tr.sendJoinLocked(); err != nil {
				t.log.Warn("liveness.task: join send failed", "error", err)
			}
			tr.transmitted = true
			nextJoin = t.joinInterval
		}

		if nextKeepAlive <= 0 {
			// Only speak up if nothing went out during this window.
			if !tr.transmitted {
				if err := tr.sendKeepAliveLocked(); err != nil {
					t.log.Warn("liveness.task: keep-alive send failed", "error", err)
				}
			} else {
				metricKeepAlivesSuppressed.Inc()
			}
			tr.transmitted = false
			nextKeepAlive = tr.peers.MinimumLease(tr.lease) / t.expireFactor
		}

		// Sleep until the earliest timer would reach zero. next_lease joins
		// the minimum only while it is still counting down.
		interval := nextKeepAlive
		if nextJoin < interval {
			interval = nextJoin
		}
		if nextLease > 0 && nextLease < interval {
			interval = nextLease
		}

		tr.mu.Unlock()

		t.clock.Sleep(interval)

		tr.mu.Lock()
		tr.peers.DecrementAll(interval)
		nextLease = tr.peers.NextLease()
		tr.mu.Unlock()
		nextKeepAlive -= interval
		nextJoin -= interval
	}

	t.log.Debug("liveness.task: stopped")
}
