// Package monitoring exposes prometheus metrics for the attendance
// engine.  Collectors are registered on the default registry via
// promauto and served from GET /metrics.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	checkInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "check_ins_total",
			Help: "Successful check-ins by method",
		},
		[]string{"method"},
	)

	promotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_promotions_total",
			Help: "Waitlist entries promoted to confirmed registrations",
		},
	)

	penaltiesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "no_show_penalties_total",
			Help: "No-show penalties created by the sweep",
		},
	)

	paymentCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_calls_total",
			Help: "Payment service calls by operation and result",
		},
		[]string{"operation", "status"},
	)

	breakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_open",
			Help: "1 while the named circuit breaker is open",
		},
		[]string{"name"},
	)
)

// TrackRegistration records one registration attempt outcome
// (confirmed, waitlisted, rejected or error).
func TrackRegistration(outcome string) {
	registrationsTotal.WithLabelValues(outcome).Inc()
}

// TrackCheckIn records one successful check-in.
func TrackCheckIn(method string) {
	checkInsTotal.WithLabelValues(method).Inc()
}

// TrackPromotions records promoted waitlist entries.
func TrackPromotions(n int) {
	promotionsTotal.Add(float64(n))
}

// TrackPenalties records penalties created by a no-show sweep.
func TrackPenalties(n int) {
	penaltiesTotal.Add(float64(n))
}

// TrackPaymentCall records one payment-service call result.
func TrackPaymentCall(operation, status string) {
	paymentCallsTotal.WithLabelValues(operation, status).Inc()
}

// SetBreakerOpen exports a breaker state transition.
func SetBreakerOpen(name string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	breakerOpen.WithLabelValues(name).Set(v)
}
