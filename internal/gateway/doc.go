// Package gateway runs one conversion request end to end: it stages the
// uploaded document in scratch storage, hands both staged paths to the engine,
// streams the result back through a Responder and releases every staged file
// before returning.
//
// Each call to Gateway.Handle yields exactly one Outcome. Failures carry the
// stage they happened in and a Reason the transport maps onto a status code;
// the wrapped error stays in the logs and never reaches the client.
package gateway
