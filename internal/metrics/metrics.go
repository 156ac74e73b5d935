package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "watchlater"

// Update kinds as seen by the router
const (
	KindCommand  = "command"
	KindCallback = "callback"
	KindText     = "text"
	KindIgnored  = "ignored"
)

type Metrics struct {
	Updates         *prometheus.CounterVec
	HandlerErrors   *prometheus.CounterVec
	ItemsSaved      prometheus.Counter
	ItemsMarkedRead prometheus.Counter
}

// New registers the bot collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates received, by kind.",
		}, []string{"kind"}),
		HandlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Handler failures, by handler.",
		}, []string{"handler"}),
		ItemsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_saved_total",
			Help:      "Items added to the watch list.",
		}),
		ItemsMarkedRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_marked_read_total",
			Help:      "Items marked as read.",
		}),
	}
}

// NewNop returns collectors that are not exported anywhere
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
