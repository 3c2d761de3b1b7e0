// Package logs reads the gateway's run log for `docgate logs`.
//
// Last returns the trailing lines of a log with bounded memory. Follow polls
// for appended lines and starts over when the file is truncated or the
// docgate.log pointer moves to a newer run.
package logs
