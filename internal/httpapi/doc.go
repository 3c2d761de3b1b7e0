// Package httpapi exposes the gateway over HTTP.
//
// Routes:
//   - POST /convert/{ext}: convert the uploaded file to ext
//   - POST /converted/{name}: convert to the extension of name
//   - GET /healthz: 200 while the engine is running, 503 otherwise
//   - GET /api/formats, GET /api/status: diagnostics, guarded by the API token
//
// Failures are written as api.ErrorResponse with a status chosen from the
// gateway failure reason.
package httpapi
