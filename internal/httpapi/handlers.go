package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docgate/internal/api"
	"docgate/internal/engine"
	"docgate/internal/gateway"
	"docgate/internal/scratch"
	"docgate/internal/upload"
)

func (s *server) handleConvert(w http.ResponseWriter, r *http.Request) {
	s.convert(w, r, chi.URLParam(r, "ext"))
}

// handleConverted takes the target from the extension of the last path
// segment, so clients can name the file they want back.
func (s *server) handleConverted(w http.ResponseWriter, r *http.Request) {
	s.convert(w, r, scratch.ExtensionOf(chi.URLParam(r, "name")))
}

func (s *server) convert(w http.ResponseWriter, r *http.Request, target string) {
	ctx := r.Context()

	part, err := s.extractor.Extract(r)
	if err != nil {
		outcome := s.gateway.Reject(ctx, uploadReason(err), err)
		writeFailure(w, r, outcome.Failure)
		return
	}
	defer part.Close()

	responder := &documentResponder{w: w}
	outcome := s.gateway.Handle(ctx, gateway.Request{
		SourceFilename:  part.Filename,
		Source:          part.Body,
		TargetExtension: target,
	}, responder)
	if outcome.OK() || responder.started {
		return
	}
	writeFailure(w, r, outcome.Failure)
}

func uploadReason(err error) gateway.Reason {
	switch {
	case errors.Is(err, upload.ErrNotMultipart):
		return gateway.ReasonNotMultipart
	case errors.Is(err, upload.ErrNoFilePart):
		return gateway.ReasonNoFilePart
	default:
		return gateway.ReasonMalformedUpload
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.engine.State()
	if state != engine.StateRunning {
		writeJSON(w, http.StatusServiceUnavailable, api.HealthResponse{Status: "unavailable", Engine: state.String()})
		return
	}
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok", Engine: state.String()})
}

func (s *server) handleFormats(w http.ResponseWriter, r *http.Request) {
	registry := s.engine.Registry()
	if registry == nil || registry.Len() == 0 {
		writeError(w, r, http.StatusServiceUnavailable, string(gateway.ReasonEngineUnavailable), "conversion engine is not running")
		return
	}
	writeJSON(w, http.StatusOK, api.FormatsResponse{Formats: api.FromFormats(registry.Formats())})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, api.StatusResponse{Engine: api.EngineStatus{State: s.engine.State().String()}})
		return
	}
	writeJSON(w, http.StatusOK, s.status.Status(r.Context()))
}
