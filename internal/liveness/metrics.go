package liveness

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Labels.
	LabelType   = "type"
	LabelReason = "reason"
)

var (
	metricPeers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ethermesh_liveness_peers",
			Help: "Current number of peers in the peer table",
		},
	)

	metricPeersAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_peers_admitted_total",
			Help: "Count of peers admitted by the receive path",
		},
	)

	metricPeersExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_peers_expired_total",
			Help: "Count of peers removed after a silent lease window",
		},
	)

	metricFramesTX = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_frames_tx_total",
			Help: "Total frames sent by type",
		},
		[]string{LabelType},
	)

	metricKeepAlivesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_keepalives_suppressed_total",
			Help: "Keep-alive ticks skipped because other traffic was already sent in the window",
		},
	)

	metricSendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_send_errors_total",
			Help: "Count of transmit adapter failures",
		},
	)

	metricFramesRX = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_frames_rx_total",
			Help: "Total valid frames received by type",
		},
		[]string{LabelType},
	)

	metricFramesRXInvalid = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_frames_rx_invalid_total",
			Help: "Invalid frames received (e.g. short, bad_version, bad_type, parse_error)",
		},
		[]string{LabelReason},
	)

	metricUnknownPeerFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_unknown_peer_frames_total",
			Help: "Non-JOIN frames from peers not present in the peer table",
		},
	)

	metricReadSocketErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_read_socket_errors_total",
			Help: "Count of read socket errors",
		},
	)

	metricTaskWakeups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ethermesh_liveness_lease_task_wakeups_total",
			Help: "Lease task loop iterations",
		},
	)
)
