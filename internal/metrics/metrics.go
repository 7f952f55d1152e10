// Package metrics exposes UPS telemetry as Prometheus metrics, fed from the
// event bus so the session never knows metrics exist.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tbarrett/upswatch/internal/event"
	"github.com/tbarrett/upswatch/internal/session"
	"github.com/tbarrett/upswatch/internal/status"
)

// Collector registers UPS gauges and counters and updates them from bus
// events.
type Collector struct {
	logger *zap.Logger

	connected      *prometheus.GaugeVec
	onBattery      *prometheus.GaugeVec
	batteryCharge  *prometheus.GaugeVec
	load           *prometheus.GaugeVec
	runtimeSeconds *prometheus.GaugeVec

	pollErrors  *prometheus.CounterVec
	transitions *prometheus.CounterVec

	unsubscribe []func()
}

// NewCollector creates a collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		logger: logger,
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "upswatch",
			Name:      "connected",
			Help:      "1 while a session to the device is established.",
		}, []string{"device"}),
		onBattery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "upswatch",
			Name:      "on_battery",
			Help:      "1 while the device reports it is running on battery.",
		}, []string{"device"}),
		batteryCharge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "upswatch",
			Name:      "battery_charge_percent",
			Help:      "Battery charge as reported by the device, 0-100.",
		}, []string{"device"}),
		load: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "upswatch",
			Name:      "load_percent",
			Help:      "Output load as reported by the device, 0-100.",
		}, []string{"device"}),
		runtimeSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "upswatch",
			Name:      "battery_runtime_seconds",
			Help:      "Estimated battery runtime remaining in seconds.",
		}, []string{"device"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upswatch",
			Name:      "poll_errors_total",
			Help:      "Poll cycles that failed to refresh the device.",
		}, []string{"device"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upswatch",
			Name:      "power_transitions_total",
			Help:      "Power source transitions observed, by direction.",
		}, []string{"device", "from", "to"}),
	}

	reg.MustRegister(
		c.connected, c.onBattery, c.batteryCharge,
		c.load, c.runtimeSeconds,
		c.pollErrors, c.transitions,
	)
	return c
}

// Bind subscribes the collector to session events on the bus.
func (c *Collector) Bind(bus *event.Bus) {
	c.unsubscribe = append(c.unsubscribe,
		bus.Subscribe(event.TopicConnected, c.onConnected),
		bus.Subscribe(event.TopicDisconnected, c.onDisconnected),
		bus.Subscribe(event.TopicStatusUpdated, c.onStatus),
		bus.Subscribe(event.TopicPowerTransition, c.onTransition),
		bus.Subscribe(event.TopicPollError, c.onPollError),
	)
}

// Close detaches the collector from the bus. Metrics stay registered.
func (c *Collector) Close() {
	for _, unsub := range c.unsubscribe {
		unsub()
	}
	c.unsubscribe = nil
}

func (c *Collector) onConnected(_ context.Context, e event.Event) {
	payload, ok := e.Payload.(session.ConnectedEvent)
	if !ok {
		c.logger.Warn("unexpected connected payload", zap.String("topic", e.Topic))
		return
	}
	c.connected.WithLabelValues(payload.Device).Set(1)
}

func (c *Collector) onDisconnected(_ context.Context, e event.Event) {
	payload, ok := e.Payload.(session.DisconnectedEvent)
	if !ok {
		c.logger.Warn("unexpected disconnected payload", zap.String("topic", e.Topic))
		return
	}
	c.connected.WithLabelValues(payload.Device).Set(0)

	// Telemetry from a closed session is stale, not zero.
	c.onBattery.DeleteLabelValues(payload.Device)
	c.batteryCharge.DeleteLabelValues(payload.Device)
	c.load.DeleteLabelValues(payload.Device)
	c.runtimeSeconds.DeleteLabelValues(payload.Device)
}

func (c *Collector) onStatus(_ context.Context, e event.Event) {
	payload, ok := e.Payload.(session.StatusEvent)
	if !ok {
		c.logger.Warn("unexpected status payload", zap.String("topic", e.Topic))
		return
	}
	dev := payload.Device
	st := payload.Status

	if st.Power == status.PowerOnBattery {
		c.onBattery.WithLabelValues(dev).Set(1)
	} else {
		c.onBattery.WithLabelValues(dev).Set(0)
	}

	setOrDrop(c.batteryCharge, dev, st.BatteryCharge)
	setOrDrop(c.load, dev, st.Load)
	if st.RuntimeSeconds != nil {
		c.runtimeSeconds.WithLabelValues(dev).Set(float64(*st.RuntimeSeconds))
	} else {
		c.runtimeSeconds.DeleteLabelValues(dev)
	}
}

func (c *Collector) onTransition(_ context.Context, e event.Event) {
	payload, ok := e.Payload.(session.PowerTransitionEvent)
	if !ok {
		c.logger.Warn("unexpected transition payload", zap.String("topic", e.Topic))
		return
	}
	c.transitions.WithLabelValues(
		payload.Device, string(payload.From), string(payload.To),
	).Inc()
}

func (c *Collector) onPollError(_ context.Context, e event.Event) {
	payload, ok := e.Payload.(session.PollErrorEvent)
	if !ok {
		c.logger.Warn("unexpected poll error payload", zap.String("topic", e.Topic))
		return
	}
	c.pollErrors.WithLabelValues(payload.Device).Inc()
}

// setOrDrop sets the gauge when a value is present and removes the series
// when it is not, so absent variables never render as zero.
func setOrDrop(g *prometheus.GaugeVec, device string, v *float64) {
	if v != nil {
		g.WithLabelValues(device).Set(*v)
		return
	}
	g.DeleteLabelValues(device)
}
