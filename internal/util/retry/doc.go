// Package retry provides exponential backoff retry logic for transient failures
// and bounded polling for readiness conditions.
//
// [WithExponentialBackoff] retries an operation with configurable max attempts,
// initial delay, and maximum delay. [Poll] waits for a condition such as
// "all tagged servers are gone" within a deadline. Both honour context
// cancellation.
package retry
