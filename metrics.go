package authgate

import internalmetrics "github.com/halyard-io/authgate/internal/metrics"

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricSessionCreated counts successful session creations.
	MetricSessionCreated = internalmetrics.MetricSessionCreated
	// MetricSessionValidated counts successful session validations.
	MetricSessionValidated = internalmetrics.MetricSessionValidated
	// MetricSessionRejected counts failed session validations.
	MetricSessionRejected = internalmetrics.MetricSessionRejected
	// MetricSessionRevoked counts single-session revocations.
	MetricSessionRevoked = internalmetrics.MetricSessionRevoked
	// MetricRevokeAll counts revoke-all operations.
	MetricRevokeAll = internalmetrics.MetricRevokeAll
	// MetricFingerprintMismatch counts fingerprint binding rejections.
	MetricFingerprintMismatch = internalmetrics.MetricFingerprintMismatch
	// MetricCSRFIssued counts CSRF token issuances and rotations.
	MetricCSRFIssued = internalmetrics.MetricCSRFIssued
	// MetricCSRFRejected counts failed CSRF verifications.
	MetricCSRFRejected = internalmetrics.MetricCSRFRejected
	// MetricBearerIssued counts bearer fallback tokens minted.
	MetricBearerIssued = internalmetrics.MetricBearerIssued
	// MetricBearerFallback counts requests authenticated via the bearer
	// channel after the cookie channel yielded nothing.
	MetricBearerFallback = internalmetrics.MetricBearerFallback
	// MetricBearerRejected counts bearer verification failures.
	MetricBearerRejected = internalmetrics.MetricBearerRejected
	// MetricStoreUnavailable counts store outages observed by the engine.
	MetricStoreUnavailable = internalmetrics.MetricStoreUnavailable
	// MetricDrainRejected counts session creations refused during drain.
	MetricDrainRejected = internalmetrics.MetricDrainRejected
	// MetricValidateLatency is the validation latency histogram.
	MetricValidateLatency = internalmetrics.MetricValidateLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
