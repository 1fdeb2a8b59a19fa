package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OffersCreated tracks successfully persisted trade offers
	OffersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offersvc_offers_created_total",
			Help: "Total number of trade offers created",
		},
	)

	// OfferTransitions tracks offer status transitions
	OfferTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offersvc_offer_transitions_total",
			Help: "Total number of offer status transitions",
		},
		[]string{"status"},
	)

	// RemoteCallsTotal tracks calls per downstream dependency
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offersvc_remote_calls_total",
			Help: "Total number of remote dependency calls",
		},
		[]string{"dependency"},
	)

	// RemoteCallErrors tracks failed calls per dependency and error kind
	RemoteCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offersvc_remote_call_errors_total",
			Help: "Total number of failed remote dependency calls",
		},
		[]string{"dependency", "kind"},
	)

	// BreakerState exposes the circuit breaker state per dependency
	// (0 = closed, 1 = open, 2 = half-open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "offersvc_breaker_state",
			Help: "Circuit breaker state per dependency (0=closed, 1=open, 2=half-open)",
		},
		[]string{"dependency"},
	)

	// BreakerOpens tracks closed/half-open to open transitions
	BreakerOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offersvc_breaker_opens_total",
			Help: "Total number of circuit breaker open transitions",
		},
		[]string{"dependency"},
	)

	// NotificationsPublished tracks events accepted by the broker
	NotificationsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offersvc_notifications_published_total",
			Help: "Total number of notification events published",
		},
	)

	// NotificationPublishErrors tracks publish failures (fire-and-forget)
	NotificationPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offersvc_notification_publish_errors_total",
			Help: "Total number of failed notification publishes",
		},
	)

	// NotificationsConsumed tracks events durably stored and acked
	NotificationsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offersvc_notifications_consumed_total",
			Help: "Total number of notification events stored and acknowledged",
		},
	)

	// NotificationsRequeued tracks storage failures that returned the message
	NotificationsRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offersvc_notifications_requeued_total",
			Help: "Total number of notification events requeued after a storage failure",
		},
	)

	// NotificationsDiscarded tracks malformed payloads acked without storing
	NotificationsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offersvc_notifications_discarded_total",
			Help: "Total number of malformed notification payloads discarded",
		},
	)
)
