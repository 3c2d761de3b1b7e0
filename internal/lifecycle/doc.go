// Package lifecycle owns the process-wide pieces of a running gateway: the
// single-instance lock, scratch storage, the engine handle and the HTTP
// server.
//
// Start order: lock, sweep stale scratch files, start the engine, open the
// listener. A failed engine start is fatal and no listener is opened.
// Stop runs in reverse: drain HTTP, stop the engine (which waits for
// in-flight conversions), release the lock.
package lifecycle
