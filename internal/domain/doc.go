// Package domain models Celsius-to-Fahrenheit conversions and the per-session
// history that records them.
//
// # Conversions
//
// A [Conversion] is produced for every valid value submitted to the form. The
// Fahrenheit value either comes from the learned regression model or, when the
// model cannot be loaded or evaluated, from the classic formula:
//
//	F = C × 1.8 + 32
//
// The UsedFallback flag is set exactly when the formula was used for that
// conversion. No distinction is made between the reasons the model failed.
//
// # History
//
// Each session keeps a [History] of at most [HistoryLimit] entries. New entries
// are appended at the end; once the limit is exceeded the oldest entries are
// dropped first. Pages display the history newest-first.
//
// History entries store Fahrenheit rounded to two decimals and the timestamp as
// an ISO-8601 UTC string with a "Z" suffix and at most microsecond precision:
//
//	{"when": "2024-04-26T15:10:00.123456Z", "celsius": 21.5, "fahrenheit": 70.7}
//
// # Loss Curve
//
// [LossCurve] returns illustrative chart data: 80 points of a decaying
// exponential with a small sinusoidal ripple. It is not derived from any
// training run and is recomputed for every page render.
package domain
