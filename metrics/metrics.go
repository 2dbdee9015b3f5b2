// Package metrics holds the Prometheus collectors of the bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var OrdersSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "futbridge_orders_submitted_total",
	Help: "Orders handed to the gateway, by wire shape",
}, []string{"type"})

var OrderOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "futbridge_order_outcomes_total",
	Help: "Results of order submissions and cancels",
}, []string{"op", "outcome"})

var OrderSlots = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "futbridge_order_slots",
	Help: "Order arena slots in use",
})

var RequestOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "futbridge_request_outcomes_total",
	Help: "Terminal states of tracked session requests",
}, []string{"kind", "status"})

var WaitDurations = prometheus.NewSummaryVec(prometheus.SummaryOpts{
	Name:       "futbridge_wait_duration_ms",
	Help:       "time spent blocked on the host control thread, milliseconds",
	AgeBuckets: 1,
}, []string{"op"})

var Callbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "futbridge_callbacks_total",
	Help: "Gateway callbacks received, by category",
}, []string{"kind"})

var Ignored = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "futbridge_callbacks_ignored_total",
	Help: "Callbacks dropped because they are foreign, stale or unknown",
}, []string{"kind", "reason"})

var LoginState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "futbridge_login_state",
	Help: "1 when a sub-connection has logged in",
}, []string{"connection"})

var MonitorClients = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "futbridge_monitor_clients",
	Help: "Connected status monitor clients",
})

func init() {
	prometheus.MustRegister(OrdersSubmitted, OrderOutcomes, OrderSlots, RequestOutcomes,
		WaitDurations, Callbacks, Ignored, LoginState, MonitorClients)
}

// ObserveWait records how long op blocked since start.
func ObserveWait(op string, start time.Time) {
	WaitDurations.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
