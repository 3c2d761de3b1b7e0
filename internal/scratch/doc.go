// Package scratch owns the temporary files a conversion request stages on
// disk: the uploaded input and the reserved output.
//
// Every staged file gets a name that is unique at creation time, so
// concurrent requests for the same upload never collide, and Release is safe
// to call on every exit path. Sweep reclaims files left behind by a crash.
package scratch
