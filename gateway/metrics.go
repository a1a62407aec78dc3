package gateway

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/notnil/hkgsafety"
)

const metricsNamespace = "hkgsafety"

// Metrics holds the Prometheus instruments of a gateway. A nil Registerer
// yields working but unregistered instruments.
type Metrics struct {
	// RxFrames counts inbound vehicle frames.
	// Labels: bus, result (valid, invalid)
	RxFrames *prometheus.CounterVec

	// TxFrames counts frames proposed by the compute module.
	// Labels: bus, result (allowed, blocked)
	TxFrames *prometheus.CounterVec

	// ForwardedFrames counts relayed frames.
	// Labels: from, to
	ForwardedFrames *prometheus.CounterVec

	// DroppedFrames counts inbound frames relayed nowhere.
	// Labels: bus
	DroppedFrames *prometheus.CounterVec

	ControlsAllowed  prometheus.Gauge
	RelayMalfunction prometheus.Gauge
	RxChecksValid    prometheus.Gauge

	// TopologyBus is the learned bus of a node, -1 while unknown.
	// Labels: node (mdps, scc)
	TopologyBus *prometheus.GaugeVec
}

// NewMetrics creates the gateway instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RxFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rx_frames_total",
			Help:      "Inbound vehicle frames by bus and integrity result.",
		}, []string{"bus", "result"}),
		TxFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tx_frames_total",
			Help:      "Compute module frames by target bus and decision.",
		}, []string{"bus", "result"}),
		ForwardedFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "forwarded_frames_total",
			Help:      "Frames relayed between vehicle buses.",
		}, []string{"from", "to"}),
		DroppedFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_frames_total",
			Help:      "Inbound frames not relayed to any bus.",
		}, []string{"bus"}),
		ControlsAllowed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "controls_allowed",
			Help:      "1 while the compute module may actuate.",
		}),
		RelayMalfunction: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "relay_malfunction",
			Help:      "1 after stock ECU traffic was seen on the vehicle side.",
		}),
		RxChecksValid: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "rx_checks_valid",
			Help:      "1 while every monitored message is present and intact.",
		}),
		TopologyBus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "topology_bus",
			Help:      "Learned bus of the steering unit and cruise controller.",
		}, []string{"node"}),
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *Metrics) observeRx(bus int, valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.RxFrames.WithLabelValues(strconv.Itoa(bus), result).Inc()
}

func (m *Metrics) observeTx(bus int, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "blocked"
	}
	m.TxFrames.WithLabelValues(strconv.Itoa(bus), result).Inc()
}

func (m *Metrics) observeForward(from int, to hkgsafety.Targets) {
	if to == hkgsafety.NoForward {
		m.DroppedFrames.WithLabelValues(strconv.Itoa(from)).Inc()
		return
	}
	for _, b := range to.Buses() {
		m.ForwardedFrames.WithLabelValues(strconv.Itoa(from), strconv.Itoa(b)).Inc()
	}
}

func (m *Metrics) observeState(s hkgsafety.Snapshot) {
	m.ControlsAllowed.Set(boolGauge(s.ControlsAllowed))
	m.RelayMalfunction.Set(boolGauge(s.RelayMalfunction))
	m.RxChecksValid.Set(boolGauge(s.RxChecksValid))
	m.TopologyBus.WithLabelValues("mdps").Set(float64(s.Topology.MDPSBus))
	m.TopologyBus.WithLabelValues("scc").Set(float64(s.Topology.SCCBus))
}
