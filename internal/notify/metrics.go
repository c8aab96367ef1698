package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// emailsTotal — счётчик уведомлений по событию и результату (sent, skipped, failed).
var emailsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ar_notifications_total",
		Help: "Total number of notifications by event and delivery result",
	},
	[]string{"event", "delivery"},
)
