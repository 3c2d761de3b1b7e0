// Package api defines the wire-format types of the docgate HTTP API and a
// small client for it. The server in internal/httpapi encodes these types and
// the CLI decodes them, so neither side couples to engine internals.
//
// # Key Types
//
// StatusResponse: engine state, office instances, dependency availability,
// scratch usage and the upload cap.
//
// FormatsResponse: the output formats the running engine can produce.
//
// ErrorResponse: the body of every non-2xx response. Error is a stable
// machine-readable code; Message is safe to show to users.
//
// # Converters
//
// FromHealth: engine.Health -> EngineStatus.
//
// FromFormats: []engine.Format -> []Format, sorted by extension.
//
// FromDependencies: []deps.Status -> []DependencyStatus.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
package api
