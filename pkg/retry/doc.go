// Package retry provides exponential backoff retry for operations that
// can fail transiently, such as requests sent over the host channel.
//
// Retry decisions honor the error classification scheme from the errors
// package: transient errors are retried, invalid and fatal errors abort
// immediately. An error can also be pinned as non-retryable explicitly
// with NonRetryable regardless of its classification.
package retry
