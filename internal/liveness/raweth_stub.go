//go:build !linux

package liveness

import "net"

// RawEthernetSender requires AF_PACKET support and is only built on Linux.
type RawEthernetSender struct{}

func NewRawEthernetSender(ifaceName string, dst net.HardwareAddr) (*RawEthernetSender, error) {
	return nil, ErrTransportNotAvailable
}

func (s *RawEthernetSender) Send(payload []byte) error { return ErrTransportNotAvailable }

func (s *RawEthernetSender) Close() error { return ErrTransportNotAvailable }
