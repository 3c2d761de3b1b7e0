// Package engine wraps the long-lived external conversion engine behind a
// guarded state machine.
//
// Handle is created once per process. Its lifecycle (Start/Stop) belongs to a
// single owner, while Convert may be called from any number of request
// goroutines. Conversions are only dispatched while the engine is Running;
// every other state fails fast with ErrNotRunning. Stop flips the state to
// Stopping, waits for in-flight conversions to drain, then stops the backend.
//
// The Registry built at start maps output extensions to media types and is
// read-only afterwards.
package engine
