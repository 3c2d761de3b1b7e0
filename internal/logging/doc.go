// Package logging builds the slog loggers used by docgate.
//
// New writes JSON (files, pipes) or a compact console format (terminals) to
// any mix of stdout, stderr and files. Request ids travel in the context:
// WithRequestID stores one, and both WithContext and the *Context logging
// methods attach it as request_id so a single conversion can be traced across
// the HTTP, gateway and engine lines. Attribute helpers and the standard field
// names keep every component's output in the same shape.
package logging
