package liveness

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/meshnetlabs/ethermesh/config"
	"golang.org/x/net/ipv4"
)

// UDPGroupConfig configures the UDP multicast group socket.
type UDPGroupConfig struct {
	Logger        *slog.Logger
	GroupIP       string // e.g. "239.76.83.1"
	Port          int
	InterfaceName string // optional, e.g. "eth0"
	TTL           int
	Loopback      bool // receive our own frames (useful for testing)
}

// Validate fills defaults and enforces constraints for UDPGroupConfig.
func (c *UDPGroupConfig) Validate() error {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.GroupIP == "" {
		c.GroupIP = config.DefaultGroupIP
	}
	if c.Port == 0 {
		c.Port = config.DefaultGroupPort
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.TTL == 0 {
		c.TTL = config.DefaultTTL
	}
	if c.TTL < 0 || c.TTL > 255 {
		return fmt.Errorf("invalid TTL: %d", c.TTL)
	}
	return nil
}

// UDPGroup is a UDP multicast group socket serving both directions: it is
// the Sender for outbound liveness frames and the PacketReader the Receiver
// drains.
type UDPGroup struct {
	log *slog.Logger
	raw *net.UDPConn
	pc  *ipv4.PacketConn
	dst *net.UDPAddr
}

// NewUDPGroup joins the multicast group described by cfg and returns the
// configured socket.
func NewUDPGroup(cfg *UDPGroupConfig) (*UDPGroup, error) {
	if cfg == nil {
		cfg = &UDPGroupConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ip := net.ParseIP(cfg.GroupIP)
	if ip == nil {
		return nil, fmt.Errorf("invalid group IP: %s", cfg.GroupIP)
	}
	if !ip.IsMulticast() {
		return nil, fmt.Errorf("IP %s is not a multicast address", cfg.GroupIP)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip, Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("failed to listen UDP: %w", err)
	}

	p := ipv4.NewPacketConn(conn)

	var ifi *net.Interface
	if cfg.InterfaceName != "" {
		ifi, err = net.InterfaceByName(cfg.InterfaceName)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to get interface %s: %w", cfg.InterfaceName, err)
		}
	}

	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: ip}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to join multicast group: %w", err)
	}

	if err := p.SetMulticastTTL(cfg.TTL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set multicast TTL: %w", err)
	}
	if ifi != nil {
		if err := p.SetMulticastInterface(ifi); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set multicast interface: %w", err)
		}
	}
	if cfg.Loopback {
		if err := p.SetMulticastLoopback(true); err != nil {
			cfg.Logger.Warn("failed to enable multicast loopback", "error", err)
		}
	}

	cfg.Logger.Info("liveness.udp: joined group",
		"group", cfg.GroupIP, "port", cfg.Port, "iface", cfg.InterfaceName)

	return &UDPGroup{
		log: cfg.Logger,
		raw: conn,
		pc:  p,
		dst: &net.UDPAddr{IP: ip, Port: cfg.Port},
	}, nil
}

// Send writes one frame to the group.
func (g *UDPGroup) Send(payload []byte) error {
	if _, err := g.raw.WriteToUDP(payload, g.dst); err != nil {
		return fmt.Errorf("failed to send to group: %w", err)
	}
	return nil
}

// ReadFrom reads one datagram from the group.
func (g *UDPGroup) ReadFrom(buf []byte) (int, *net.UDPAddr, error) {
	n, from, err := g.raw.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, err
	}
	return n, from, nil
}

// SetReadDeadline forwards to the underlying socket.
func (g *UDPGroup) SetReadDeadline(t time.Time) error {
	return g.raw.SetReadDeadline(t)
}

// LocalAddr returns the underlying socket's local address.
func (g *UDPGroup) LocalAddr() net.Addr { return g.raw.LocalAddr() }

// Close closes the underlying socket.
func (g *UDPGroup) Close() error {
	err := g.raw.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
