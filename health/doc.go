// Package health provides the shared tri-level health status type for the
// plugin core. Components derive a Status of healthy, warning, or critical
// from their own thresholds and attach human-readable remediation hints.
//
// Statuses are diagnostic only; nothing in the core makes control decisions
// from them. Messages are sanitized before they leave the process so that
// credentials, URLs, and addresses never appear in user-visible diagnostics.
package health
