package internaldefs

import (
	storefront "github.com/MrEthical07/storefront"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   storefront.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   storefront.MetricID
	Name string
	Help string
}

// EventsDroppedName is the counter for events the async dispatcher dropped.
const EventsDroppedName = "storefront_events_dropped_total"

var CounterDefs = []CounterDef{
	{ID: storefront.MetricLoginSuccess, Name: "storefront_login_success_total", Help: "Successful logins."},
	{ID: storefront.MetricLoginFailure, Name: "storefront_login_failure_total", Help: "Failed logins."},
	{ID: storefront.MetricOTPRequested, Name: "storefront_otp_requested_total", Help: "OTP requests sent to the API."},
	{ID: storefront.MetricOTPRateLimited, Name: "storefront_otp_rate_limited_total", Help: "OTP requests refused by the resend cooldown."},
	{ID: storefront.MetricRegistrationSuccess, Name: "storefront_registration_success_total", Help: "Completed registrations."},
	{ID: storefront.MetricRefreshSuccess, Name: "storefront_refresh_success_total", Help: "Successful token refreshes."},
	{ID: storefront.MetricRefreshFailure, Name: "storefront_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: storefront.MetricSessionTeardown, Name: "storefront_session_teardown_total", Help: "Sessions torn down for any reason."},
	{ID: storefront.MetricLogout, Name: "storefront_logout_total", Help: "Explicit logouts."},
	{ID: storefront.MetricUnauthorizedRetry, Name: "storefront_unauthorized_retry_total", Help: "Requests re-issued after a refresh triggered by 401."},
	{ID: storefront.MetricUnauthorizedSurfaced, Name: "storefront_unauthorized_surfaced_total", Help: "401 responses returned to callers."},
	{ID: storefront.MetricRequestTimeout, Name: "storefront_request_timeout_total", Help: "Requests abandoned by the client-side timeout."},
	{ID: storefront.MetricNetworkError, Name: "storefront_network_error_total", Help: "Requests that received no response."},
	{ID: storefront.MetricValidationRejected, Name: "storefront_validation_rejected_total", Help: "Operations rejected by local validation."},
	{ID: storefront.MetricCartAdd, Name: "storefront_cart_add_total", Help: "Items added to the cart."},
	{ID: storefront.MetricCartConflict, Name: "storefront_cart_conflict_total", Help: "Cart additions refused because the item was present."},
	{ID: storefront.MetricOrderInitiated, Name: "storefront_order_initiated_total", Help: "Orders initiated."},
	{ID: storefront.MetricOrderPlaced, Name: "storefront_order_placed_total", Help: "Orders confirmed after payment."},
	{ID: storefront.MetricDebounceStale, Name: "storefront_debounce_stale_total", Help: "Debounced results discarded as out of date."},
}

var HistogramDefs = []HistogramDef{
	{ID: storefront.MetricRequestLatency, Name: "storefront_request_latency_seconds", Help: "API request latency including a refresh retry."},
}

var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in instrument-name form.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
