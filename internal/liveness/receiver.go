package liveness

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// PacketReader abstracts the group socket the receiver reads from.
type PacketReader interface {
	ReadFrom(buf []byte) (int, *net.UDPAddr, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Receiver is the receive path: a long-lived read loop that parses liveness
// frames and feeds the peer table. A JOIN admits an unknown peer; any valid
// frame from a known peer marks it heard for the next expiry sweep. Frames
// carrying our own identity (multicast loopback) are dropped.
type Receiver struct {
	log  *slog.Logger
	conn PacketReader
	tr   *Transport

	readErrWarnEvery time.Duration // min interval between repeated read warnings
	readErrWarnLast  time.Time     // last time a warning was logged
	readErrWarnMu    sync.Mutex    // guards readErrWarnLast
}

// NewReceiver constructs a Receiver bound to a socket and a transport.
// Repeated read errors are throttled to once every 5 seconds.
func NewReceiver(log *slog.Logger, conn PacketReader, tr *Transport) *Receiver {
	return &Receiver{
		log:              log,
		conn:             conn,
		tr:               tr,
		readErrWarnEvery: 5 * time.Second,
	}
}

// Run executes the read loop until ctx is canceled or the socket closes.
func (r *Receiver) Run(ctx context.Context) error {
	r.log.Debug("liveness.recv: rx loop started")
	buf := make([]byte, 1500) // typical MTU-sized buffer

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("liveness.recv: rx loop stopped by context done", "reason", ctx.Err())
			return nil
		default:
		}

		// Periodic deadlines keep the loop interruptible.
		if err := r.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				r.log.Debug("liveness.recv: socket closed; exiting")
				return nil
			}
			r.warnThrottled("liveness.recv: SetReadDeadline error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				r.log.Debug("liveness.recv: socket closed; exiting")
				return nil
			}
			metricReadSocketErrors.Inc()
			r.warnThrottled("liveness.recv: non-timeout read error", err)
			continue
		}

		f, err := UnmarshalFrame(buf[:n])
		if err != nil {
			switch {
			case errors.Is(err, ErrShortFrame):
				metricFramesRXInvalid.WithLabelValues("short").Inc()
			case errors.Is(err, ErrBadVersion):
				metricFramesRXInvalid.WithLabelValues("bad_version").Inc()
			case errors.Is(err, ErrBadFrameType):
				metricFramesRXInvalid.WithLabelValues("bad_type").Inc()
			default:
				metricFramesRXInvalid.WithLabelValues("parse_error").Inc()
			}
			r.log.Debug("liveness.recv: dropping invalid frame", "from", from, "error", err)
			continue
		}

		// Our own traffic looped back by the group.
		if f.PeerID == r.tr.LocalID() {
			continue
		}

		metricFramesRX.WithLabelValues(f.Type.String()).Inc()

		switch f.Type {
		case FrameJoin:
			// A non-positive lease would collapse the keep-alive cadence.
			if f.Lease <= 0 {
				metricFramesRXInvalid.WithLabelValues("bad_lease").Inc()
				r.log.Debug("liveness.recv: dropping join with bad lease", "peer", f.PeerID, "lease", f.Lease)
				continue
			}
			r.tr.AdmitPeer(f.PeerID, f.Lease, f.Locators, time.Now())
		default:
			if !r.tr.MarkReceived(f.PeerID) {
				// A keep-alive or data frame from a peer we have not seen a
				// JOIN from; it will be admitted once it announces itself.
				metricUnknownPeerFrames.Inc()
				r.log.Debug("liveness.recv: frame from unknown peer", "peer", f.PeerID, "type", f.Type.String())
			}
		}
	}
}

func (r *Receiver) warnThrottled(msg string, err error) {
	now := time.Now()
	r.readErrWarnMu.Lock()
	if r.readErrWarnLast.IsZero() || now.Sub(r.readErrWarnLast) >= r.readErrWarnEvery {
		r.readErrWarnLast = now
		r.readErrWarnMu.Unlock()
		r.log.Warn(msg, "error", err)
		return
	}
	r.readErrWarnMu.Unlock()
}
