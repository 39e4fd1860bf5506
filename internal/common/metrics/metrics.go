// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InitDataValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "initdata_validations_total",
			Help: "Total number of initData validation attempts",
		},
		[]string{"result"},
	)

	PaymentsCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_captured_total",
			Help: "Total number of successfully captured membership payments",
		},
	)

	PaymentsRefunded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_refunded_total",
			Help: "Total number of refunded membership payments",
		},
	)

	CheckoutRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_rejections_total",
			Help: "Total number of rejected checkout attempts",
		},
		[]string{"reason"},
	)

	EntitlementCallFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_call_failures_total",
			Help: "Total number of failed entitlement API calls",
		},
		[]string{"operation"},
	)

	PlatformAPIFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_api_failures_total",
			Help: "Total number of failed Bot API calls after retries",
		},
		[]string{"method"},
	)

	OrchestratorOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "orchestrator_operation_duration_seconds",
			Help: "Duration of orchestrator operations in seconds",
		},
		[]string{"operation"},
	)
)
