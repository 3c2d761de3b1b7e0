package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"docgate/internal/api"
	"docgate/internal/gateway"
	"docgate/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := api.ErrorResponse{Error: code, Message: message}
	if r != nil {
		if id, ok := logging.RequestIDFromContext(r.Context()); ok {
			resp.RequestID = id
		}
	}
	writeJSON(w, status, resp)
}

func writeFailure(w http.ResponseWriter, r *http.Request, failure *gateway.Failure) {
	if failure == nil {
		writeError(w, r, http.StatusInternalServerError, string(gateway.ReasonInternal), "internal error")
		return
	}
	status := StatusFor(failure.Reason)
	if failure.Reason == gateway.ReasonBusy {
		w.Header().Set("Retry-After", "5")
	}
	writeError(w, r, status, string(failure.Reason), failure.Message)
}

// StatusFor maps a failure reason onto an HTTP status code.
func StatusFor(reason gateway.Reason) int {
	switch reason {
	case gateway.ReasonNotMultipart:
		return http.StatusForbidden
	case gateway.ReasonNoFilePart, gateway.ReasonUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case gateway.ReasonMalformedUpload, gateway.ReasonInvalidFormat:
		return http.StatusBadRequest
	case gateway.ReasonTooLarge:
		return http.StatusRequestEntityTooLarge
	case gateway.ReasonUnknownFormat:
		return http.StatusUnprocessableEntity
	case gateway.ReasonEngineUnavailable, gateway.ReasonBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// documentResponder streams a converted document as an attachment.
type documentResponder struct {
	w       http.ResponseWriter
	started bool
}

func (d *documentResponder) Deliver(delivery gateway.Delivery, body io.Reader) error {
	header := d.w.Header()
	contentType := delivery.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": delivery.Filename}); disposition != "" {
		header.Set("Content-Disposition", disposition)
	} else {
		header.Set("Content-Disposition", "attachment")
	}
	if delivery.Length >= 0 {
		header.Set("Content-Length", strconv.FormatInt(delivery.Length, 10))
	}
	d.started = true
	d.w.WriteHeader(http.StatusOK)
	_, err := io.Copy(d.w, body)
	return err
}
