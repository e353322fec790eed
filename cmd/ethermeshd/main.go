package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/meshnetlabs/ethermesh/config"
	"github.com/meshnetlabs/ethermesh/internal/liveness"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cliConfig struct {
	GroupIP      string
	GroupPort    int
	Interface    string
	TTL          int
	Loopback     bool
	PeerID       string
	Lease        time.Duration
	JoinInterval time.Duration
	Locators     []string
	MetricsAddr  string
	Verbose      bool
	ShowVersion  bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("ethermeshd version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := newLogger(cfg.Verbose)

	localID, err := resolvePeerID(cfg.PeerID)
	if err != nil {
		return err
	}

	group, err := liveness.NewUDPGroup(&liveness.UDPGroupConfig{
		Logger:        log.With("component", "udp"),
		GroupIP:       cfg.GroupIP,
		Port:          cfg.GroupPort,
		InterfaceName: cfg.Interface,
		TTL:           cfg.TTL,
		Loopback:      cfg.Loopback,
	})
	if err != nil {
		return fmt.Errorf("failed to join group: %w", err)
	}

	transport, err := liveness.NewTransport(&liveness.TransportConfig{
		Logger:   log.With("component", "transport"),
		Sender:   group,
		LocalID:  localID,
		Lease:    cfg.Lease,
		Locators: cfg.Locators,
	})
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	defer transport.Close()

	task, err := liveness.NewTask(&liveness.TaskConfig{
		Logger:       log.With("component", "lease"),
		Transport:    transport,
		JoinInterval: cfg.JoinInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to create lease task: %w", err)
	}

	if cfg.MetricsAddr != "" {
		lis, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to start metrics listener: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("metrics server started", "address", lis.Addr().String())
		go func() {
			if err := http.Serve(lis, mux); err != nil {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	recv := liveness.NewReceiver(log.With("component", "recv"), group, transport)
	recvErr := make(chan error, 1)
	go func() {
		recvErr <- recv.Run(ctx)
	}()

	if err := task.Start(); err != nil {
		return fmt.Errorf("failed to start lease task: %w", err)
	}
	log.Info("ethermeshd started",
		"peer", localID,
		"group", cfg.GroupIP,
		"port", cfg.GroupPort,
		"lease", cfg.Lease,
		"joinInterval", cfg.JoinInterval,
	)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-recvErr:
		if err != nil {
			log.Error("receiver error", "error", err)
		}
	}

	task.Stop()
	task.Wait()
	cancel()
	group.Close()

	log.Info("shutdown complete")
	return nil
}

func parseFlags() *cliConfig {
	cfg := &cliConfig{}

	flag.StringVar(&cfg.GroupIP, "group-ip", config.DefaultGroupIP, "Multicast group IP address")
	flag.IntVar(&cfg.GroupPort, "group-port", config.DefaultGroupPort, "Multicast group port")
	flag.StringVar(&cfg.Interface, "interface", "", "Network interface for multicast (optional)")
	flag.IntVar(&cfg.TTL, "ttl", config.DefaultTTL, "IP TTL for outbound frames")
	flag.BoolVar(&cfg.Loopback, "loopback", false, "Enable multicast loopback (receive own frames, for testing)")
	flag.StringVar(&cfg.PeerID, "peer-id", "", "Local peer identity as hex (random when empty)")
	flag.DurationVar(&cfg.Lease, "lease", config.DefaultLease, "Lease advertised in JOIN frames")
	flag.DurationVar(&cfg.JoinInterval, "join-interval", config.DefaultJoinInterval, "Interval between JOIN announcements")
	flag.StringSliceVar(&cfg.Locators, "locator", nil, "Locator advertised in JOIN frames (repeatable)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Address for the prometheus endpoint (disabled when empty)")
	flag.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose logging")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	flag.Parse()
	return cfg
}

func resolvePeerID(hexID string) (liveness.PeerID, error) {
	if hexID != "" {
		b, err := hex.DecodeString(hexID)
		if err != nil {
			return "", fmt.Errorf("invalid peer-id: %w", err)
		}
		if len(b) == 0 || len(b) > 16 {
			return "", fmt.Errorf("invalid peer-id: want 1..16 bytes, got %d", len(b))
		}
		return liveness.PeerID(b), nil
	}
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate peer id: %w", err)
	}
	return liveness.PeerID(b), nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}
