// Package internaldefs holds the shared metric definitions consumed by the
// Prometheus and OTel exporters. It exists so the two exporters agree on
// names, help strings, and bucket math without importing each other.
package internaldefs

import authgate "github.com/halyard-io/authgate"

// CounterDef binds a metric ID to its exported name and help text.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram metric ID to its exported name.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{authgate.MetricSessionCreated, "authgate_session_created_total", "Sessions created."},
	{authgate.MetricSessionValidated, "authgate_session_validated_total", "Successful session validations."},
	{authgate.MetricSessionRejected, "authgate_session_rejected_total", "Failed session validations."},
	{authgate.MetricSessionRevoked, "authgate_session_revoked_total", "Single-session revocations."},
	{authgate.MetricRevokeAll, "authgate_session_revoke_all_total", "Revoke-all operations."},
	{authgate.MetricFingerprintMismatch, "authgate_fingerprint_mismatch_total", "Fingerprint binding rejections."},
	{authgate.MetricCSRFIssued, "authgate_csrf_issued_total", "CSRF tokens issued or rotated."},
	{authgate.MetricCSRFRejected, "authgate_csrf_rejected_total", "Failed CSRF verifications."},
	{authgate.MetricBearerIssued, "authgate_bearer_issued_total", "Bearer fallback tokens minted."},
	{authgate.MetricBearerFallback, "authgate_bearer_fallback_total", "Requests authenticated via the bearer channel."},
	{authgate.MetricBearerRejected, "authgate_bearer_rejected_total", "Bearer verification failures."},
	{authgate.MetricStoreUnavailable, "authgate_store_unavailable_total", "Session store outages observed."},
	{authgate.MetricDrainRejected, "authgate_drain_rejected_total", "Session creations refused during drain."},
}

// HistogramDefs lists every exported histogram in a stable order.
var HistogramDefs = []HistogramDef{
	{authgate.MetricValidateLatency, "authgate_validate_latency_micros", "Session validation latency in microseconds."},
}

// HistogramBounds are the le labels for the 8 fixed buckets, shared by
// both exporters.
var HistogramBounds = [8]string{"50", "100", "250", "500", "1000", "5000", "25000", "+Inf"}

// NormalizeBuckets copies the raw per-bucket counts out of a snapshot.
func NormalizeBuckets(buckets [8]uint64) [8]uint64 {
	return buckets
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// both exporters publish.
func CumulativeBuckets(buckets [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range buckets {
		running += v
		out[i] = running
	}
	return out
}
