package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Number of orders successfully created.",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Committed order status transitions.",
	}, []string{"from", "to", "trigger"})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_sweep_runs_total",
		Help: "Completed automatic status sweep invocations.",
	})

	NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notifications_delivered_total",
		Help: "Order snapshots delivered to websocket subscribers.",
	})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_notification_failures_total",
		Help: "Order snapshot deliveries that failed and dropped the subscriber.",
	})
)

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
