//go:build linux

package liveness

import (
	"fmt"
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"golang.org/x/sys/unix"
)

const (
	// EtherTypeLiveness is the EtherType carried by liveness frames on raw
	// Ethernet, from the IEEE 802 local experimental range.
	EtherTypeLiveness = 0x88B5
)

// DefaultRawDst is the destination used when no group MAC is configured.
var DefaultRawDst = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// RawEthernetSender transmits liveness frames as raw Ethernet frames on one
// interface via an AF_PACKET socket. It is the Sender used when the group
// runs below IP.
type RawEthernetSender struct {
	fd   int
	src  net.HardwareAddr
	dst  net.HardwareAddr
	addr unix.SockaddrLinklayer
}

// NewRawEthernetSender opens an AF_PACKET socket bound to the named
// interface. dst is the group destination MAC; nil selects broadcast.
func NewRawEthernetSender(ifaceName string, dst net.HardwareAddr) (*RawEthernetSender, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface %s: %w", ifaceName, err)
	}
	if dst == nil {
		dst = DefaultRawDst
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(EtherTypeLiveness)))
	if err != nil {
		return nil, fmt.Errorf("failed to open AF_PACKET socket: %w", err)
	}

	s := &RawEthernetSender{
		fd:  fd,
		src: ifi.HardwareAddr,
		dst: dst,
		addr: unix.SockaddrLinklayer{
			Protocol: htons(EtherTypeLiveness),
			Ifindex:  ifi.Index,
			Halen:    uint8(len(dst)),
		},
	}
	copy(s.addr.Addr[:], dst)

	if err := unix.Bind(fd, &s.addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind AF_PACKET socket: %w", err)
	}
	return s, nil
}

// Send frames the payload with an Ethernet header and writes it out.
func (s *RawEthernetSender) Send(payload []byte) error {
	frame, err := buildEthernetFrame(s.src, s.dst, payload)
	if err != nil {
		return err
	}
	if err := unix.Sendto(s.fd, frame, 0, &s.addr); err != nil {
		return fmt.Errorf("failed to send raw frame: %w", err)
	}
	return nil
}

// Close releases the socket.
func (s *RawEthernetSender) Close() error {
	return unix.Close(s.fd)
}

// buildEthernetFrame serializes an Ethernet header around the payload.
func buildEthernetFrame(src, dst net.HardwareAddr, payload []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	eth := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       dst,
		EthernetType: layers.EthernetType(EtherTypeLiveness),
	}
	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("failed to serialize ethernet frame: %w", err)
	}
	return buf.Bytes(), nil
}

// htons converts a short to network byte order for AF_PACKET addressing.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
