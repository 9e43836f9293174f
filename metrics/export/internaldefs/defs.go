package internaldefs

import (
	"strconv"
	"strings"

	admission "github.com/oriolmontcreus/cms-sub000"
)

// Namespace prefixes every exported series.
const Namespace = "cms"

// CounterDef maps an engine counter to an exported name.
type CounterDef struct {
	ID   admission.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to an exported name.
type HistogramDef struct {
	ID   admission.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: admission.MetricAuthSuccess, Name: "cms_auth_success_total", Help: "Requests admitted by the auth guard."},
	{ID: admission.MetricAuthMissingToken, Name: "cms_auth_missing_token_total", Help: "Guard rejections with no session cookie."},
	{ID: admission.MetricAuthInvalidToken, Name: "cms_auth_invalid_token_total", Help: "Guard rejections for invalid or expired tokens."},
	{ID: admission.MetricAuthUnknownSubject, Name: "cms_auth_unknown_subject_total", Help: "Guard rejections for tokens whose user no longer exists."},
	{ID: admission.MetricAuthForbidden, Name: "cms_auth_forbidden_total", Help: "Guard rejections for insufficient role."},
	{ID: admission.MetricAuthInternalError, Name: "cms_auth_internal_error_total", Help: "Guard rejections caused by lookup failures."},
	{ID: admission.MetricSessionCacheHit, Name: "cms_session_cache_hit_total", Help: "Identities served from the session cache."},
	{ID: admission.MetricSessionCacheMiss, Name: "cms_session_cache_miss_total", Help: "Identities resolved through token verification."},
	{ID: admission.MetricSessionInvalidated, Name: "cms_session_invalidated_total", Help: "Session cache entries dropped by subject."},
	{ID: admission.MetricTokenIssued, Name: "cms_token_issued_total", Help: "Session tokens issued."},
	{ID: admission.MetricRateLimitAllowed, Name: "cms_rate_limit_allowed_total", Help: "Requests within their rate budget."},
	{ID: admission.MetricRateLimitHit, Name: "cms_rate_limit_hit_total", Help: "Requests rejected with 429."},
	{ID: admission.MetricRateLimitFailOpen, Name: "cms_rate_limit_fail_open_total", Help: "Requests allowed because the store failed."},
	{ID: admission.MetricStoreFallback, Name: "cms_store_fallback_total", Help: "Store fallbacks to process memory."},
}

var HistogramDefs = []HistogramDef{
	{ID: admission.MetricAuthenticateLatency, Name: "cms_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "cms_audit_dropped_total"

// StoreStateName is the gauge reporting the store connection state.
const StoreStateName = "cms_store_state"

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(admission.LatencyBucketBounds) + 1

// HistogramBounds are the bucket upper bounds in seconds, as exposition
// strings, ending with "+Inf".
var HistogramBounds = func() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range admission.LatencyBucketBounds {
		out = append(out, strconv.FormatFloat(b.Seconds(), 'g', -1, 64))
	}
	return append(out, "+Inf")
}()

// HistogramBoundSuffix are HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = func() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range HistogramBounds {
		if b == "+Inf" {
			out = append(out, "inf")
			continue
		}
		out = append(out, strings.ReplaceAll(b, ".", "_"))
	}
	return out
}()

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, 0, len(admission.LatencyBucketBounds))
	for _, b := range admission.LatencyBucketBounds {
		out = append(out, b.Seconds())
	}
	return out
}

// NormalizeBuckets copies raw into a fixed-size bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
