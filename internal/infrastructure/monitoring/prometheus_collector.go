package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gateway
	connectionsActive  prometheus.Gauge
	roomSubscriptions  prometheus.Gauge
	joinsTotal         prometheus.Counter
	broadcastsTotal    prometheus.Counter
	deliveriesTotal    prometheus.Counter
	deliveryErrors     prometheus.Counter
	droppedEventsTotal *prometheus.CounterVec
	fanoutDuration     prometheus.Histogram

	// Durable path
	roomsCreatedTotal    prometheus.Counter
	messagesStoredTotal  prometheus.Counter
	persistFailuresTotal prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chatnet_gateway_connections_active",
			Help: "Number of live gateway connections",
		}),

		roomSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chatnet_gateway_room_subscriptions",
			Help: "Number of active room channel subscriptions",
		}),

		joinsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatnet_gateway_joins_total",
			Help: "Total number of successful join_room events",
		}),

		broadcastsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatnet_gateway_broadcasts_total",
			Help: "Total number of chat_message events broadcast",
		}),

		deliveriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatnet_gateway_deliveries_total",
			Help: "Total number of message events delivered to connections",
		}),

		deliveryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatnet_gateway_delivery_errors_total",
			Help: "Total number of failed deliveries to connections",
		}),

		droppedEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatnet_gateway_dropped_events_total",
			Help: "Total number of gateway events dropped",
		}, []string{"reason"}),

		fanoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatnet_gateway_fanout_duration_seconds",
			Help:    "Duration of broadcasting one event to all room subscribers",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		roomsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatnet_rooms_created_total",
			Help: "Total number of chat rooms created",
		}),

		messagesStoredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatnet_messages_stored_total",
			Help: "Total number of messages appended to the message store",
		}),

		persistFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatnet_gateway_persist_failures_total",
			Help: "Total number of failed gateway message persistence attempts",
		}),
	}
}

func (p *PrometheusCollector) RecordConnect()    { p.connectionsActive.Inc() }
func (p *PrometheusCollector) RecordDisconnect() { p.connectionsActive.Dec() }

func (p *PrometheusCollector) RecordJoin()  { p.joinsTotal.Inc(); p.roomSubscriptions.Inc() }
func (p *PrometheusCollector) RecordLeave() { p.roomSubscriptions.Dec() }

func (p *PrometheusCollector) RecordSubscriptionsRemoved(n int) {
	p.roomSubscriptions.Sub(float64(n))
}

func (p *PrometheusCollector) RecordBroadcast(seconds float64, delivered, failed int) {
	p.broadcastsTotal.Inc()
	p.fanoutDuration.Observe(seconds)
	p.deliveriesTotal.Add(float64(delivered))
	p.deliveryErrors.Add(float64(failed))
}

func (p *PrometheusCollector) RecordDroppedEvent(reason string) {
	p.droppedEventsTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordRoomCreated()    { p.roomsCreatedTotal.Inc() }
func (p *PrometheusCollector) RecordMessageStored()  { p.messagesStoredTotal.Inc() }
func (p *PrometheusCollector) RecordPersistFailure() { p.persistFailuresTotal.Inc() }
