package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Reason classifies a failed request.
type Reason string

const (
	ReasonUnsupportedMediaType Reason = "unsupported_media_type"
	ReasonNotMultipart         Reason = "not_multipart"
	ReasonNoFilePart           Reason = "no_file_part"
	ReasonMalformedUpload      Reason = "malformed_upload"
	ReasonTooLarge             Reason = "too_large"
	ReasonInvalidFormat        Reason = "invalid_format"
	ReasonUnknownFormat        Reason = "unknown_format"
	ReasonEngineUnavailable    Reason = "engine_unavailable"
	ReasonBusy                 Reason = "busy"
	ReasonConversionFailed     Reason = "conversion_failed"
	ReasonInternal             Reason = "internal"
)

// ClientError reports whether the failure was caused by the request itself.
func (r Reason) ClientError() bool {
	switch r {
	case ReasonUnsupportedMediaType, ReasonNotMultipart, ReasonNoFilePart,
		ReasonMalformedUpload, ReasonTooLarge, ReasonInvalidFormat, ReasonUnknownFormat:
		return true
	default:
		return false
	}
}

// Stage names the step of the pipeline a failure happened in.
type Stage string

const (
	StageUpload  Stage = "upload"
	StageStage   Stage = "stage"
	StageConvert Stage = "convert"
	StageRespond Stage = "respond"
)

// Failure describes a failed request. Message is safe to show to clients;
// Err holds the internal detail.
type Failure struct {
	Reason  Reason
	Stage   Stage
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 3)
	parts = append(parts, string(f.Stage))
	if msg := strings.TrimSpace(f.Message); msg != "" {
		parts = append(parts, msg)
	}
	if f.Err != nil {
		parts = append(parts, f.Err.Error())
	}
	return fmt.Sprintf("%s: %s", f.Reason, strings.Join(parts, ": "))
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// AsFailure extracts a Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// fail builds a Failure, falling back to the reason's default client message.
func fail(reason Reason, stage Stage, message string, err error) *Failure {
	if strings.TrimSpace(message) == "" {
		message = defaultMessage(reason)
	}
	return &Failure{Reason: reason, Stage: stage, Message: message, Err: err}
}

func defaultMessage(reason Reason) string {
	switch reason {
	case ReasonUnsupportedMediaType, ReasonNoFilePart:
		return "request contains no file part"
	case ReasonNotMultipart:
		return "request must be multipart/form-data"
	case ReasonMalformedUpload:
		return "multipart body could not be read"
	case ReasonTooLarge:
		return "uploaded file is too large"
	case ReasonInvalidFormat:
		return "input and output formats must be given as file extensions"
	case ReasonUnknownFormat:
		return "output format is not supported"
	case ReasonEngineUnavailable:
		return "conversion engine is not running"
	case ReasonBusy:
		return "conversion engine is busy, try again later"
	case ReasonConversionFailed:
		return "conversion failed"
	default:
		return "internal error"
	}
}
