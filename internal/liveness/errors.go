package liveness

import "errors"

var (
	// ErrTransportNotAvailable is returned by entry points whose transport
	// backend is not compiled in on this platform (e.g. raw Ethernet off
	// Linux). It signals a build-time capability gap, not a runtime failure.
	ErrTransportNotAvailable = errors.New("transport not available on this platform")

	// ErrTaskFailed is returned by Task.Start when the lease task cannot be
	// brought up.
	ErrTaskFailed = errors.New("lease task failed to start")

	ErrShortFrame   = errors.New("short frame")
	ErrBadVersion   = errors.New("unsupported frame version")
	ErrBadFrameType = errors.New("unknown frame type")
	ErrBadPeerID    = errors.New("invalid peer id")
	ErrBadLocator   = errors.New("invalid locator")
)
