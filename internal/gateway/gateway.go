package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"docgate/internal/engine"
	"docgate/internal/logging"
	"docgate/internal/scratch"
)

const maxExtensionLength = 16

// Engine is the part of the engine handle a request needs.
type Engine interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
	Lookup(ext string) (engine.Format, bool)
}

// Request is one conversion request. Source is read exactly once.
type Request struct {
	SourceFilename  string
	Source          io.Reader
	TargetExtension string
}

// Delivery describes a converted document about to be streamed.
type Delivery struct {
	ContentType string
	Filename    string
	Length      int64
}

// Responder writes the converted document to the client.
type Responder interface {
	Deliver(d Delivery, body io.Reader) error
}

// Success describes a delivered document.
type Success struct {
	ContentType string
	ByteLength  int64
}

// Outcome is the result of one request: exactly one of Success and Failure is set.
type Outcome struct {
	Success *Success
	Failure *Failure
}

// OK reports whether the request succeeded.
func (o Outcome) OK() bool {
	return o.Failure == nil && o.Success != nil
}

// Gateway converts uploaded documents through a shared engine.
type Gateway struct {
	scratch   *scratch.Manager
	engine    Engine
	logger    *slog.Logger
	uploadCap int64
	now       func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithUploadCap bounds the accepted upload size in bytes. Zero disables the cap.
func WithUploadCap(limit int64) Option {
	return func(g *Gateway) {
		if limit > 0 {
			g.uploadCap = limit
		}
	}
}

// WithClock overrides the time source used for elapsed times.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// New builds a Gateway over a scratch manager and an engine.
func New(manager *scratch.Manager, eng Engine, opts ...Option) (*Gateway, error) {
	if manager == nil {
		return nil, errors.New("gateway: scratch manager is required")
	}
	if eng == nil {
		return nil, errors.New("gateway: engine is required")
	}
	g := &Gateway{
		scratch: manager,
		engine:  eng,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.NewComponentLogger(g.logger, "gateway")
	return g, nil
}

// UploadCap returns the configured upload cap, or zero when uploads are unbounded.
func (g *Gateway) UploadCap() int64 {
	return g.uploadCap
}

// attempt carries the diagnostics of one request.
type attempt struct {
	inputExt   string
	outputExt  string
	inputBytes int64
	inputMIME  string
	stage      Stage
	staged     []scratch.StagedFile
}

func (a *attempt) stagedInput() string {
	if len(a.staged) == 0 {
		return ""
	}
	return a.staged[0].Name()
}

// Handle runs the request through staging, conversion and delivery. Every
// staged file is released before Handle returns, whatever the outcome.
func (g *Gateway) Handle(ctx context.Context, req Request, resp Responder) Outcome {
	started := g.now()
	a := &attempt{stage: StageUpload}
	outcome := g.execute(ctx, req, resp, a)
	g.report(ctx, a, outcome, g.now().Sub(started))
	return outcome
}

// Reject records a request that failed before it could be handled, such as
// an upload the extractor refused.
func (g *Gateway) Reject(ctx context.Context, reason Reason, err error) Outcome {
	outcome := Outcome{Failure: fail(reason, StageUpload, "", err)}
	g.report(ctx, &attempt{stage: StageUpload}, outcome, 0)
	return outcome
}

func (g *Gateway) execute(ctx context.Context, req Request, resp Responder, a *attempt) (outcome Outcome) {
	defer g.releaseAll(a)
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{Failure: fail(ReasonInternal, a.stage, "", fmt.Errorf("panic: %v", r))}
		}
	}()

	a.inputExt = scratch.ExtensionOf(req.SourceFilename)
	a.outputExt = scratch.NormalizeExtension(req.TargetExtension)
	if !validExtension(a.inputExt) {
		return failed(ReasonInvalidFormat, StageUpload, "uploaded file name has no usable extension",
			fmt.Errorf("input extension %q", a.inputExt))
	}
	if !validExtension(a.outputExt) {
		return failed(ReasonInvalidFormat, StageUpload, "target format is not a usable extension",
			fmt.Errorf("output extension %q", a.outputExt))
	}
	basis := scratch.StemOf(req.SourceFilename)

	a.stage = StageStage
	input, err := g.scratch.Stage(req.SourceFilename, a.inputExt)
	if err != nil {
		return failed(ReasonInternal, StageStage, "", err)
	}
	a.staged = append(a.staged, input)

	a.stage = StageUpload
	if req.Source == nil {
		return failed(ReasonNoFilePart, StageUpload, "", errors.New("request has no source stream"))
	}
	written, err := g.scratch.Fill(&input, req.Source, g.uploadCap)
	a.inputBytes = written
	a.staged[0] = input
	switch {
	case errors.Is(err, scratch.ErrLimitExceeded):
		return failed(ReasonTooLarge, StageUpload,
			fmt.Sprintf("uploaded file exceeds the %s limit", humanize.IBytes(uint64(g.uploadCap))), err)
	case err != nil:
		return failed(ReasonMalformedUpload, StageUpload, "", err)
	}
	if mtype, err := mimetype.DetectFile(input.Path); err == nil {
		a.inputMIME = mtype.String()
	}

	a.stage = StageStage
	output, err := g.scratch.Stage(req.SourceFilename, a.outputExt)
	if err != nil {
		return failed(ReasonInternal, StageStage, "", err)
	}
	a.staged = append(a.staged, output)

	a.stage = StageConvert
	if err := g.engine.Convert(ctx, input.Path, output.Path); err != nil {
		return Outcome{Failure: classifyEngineError(err)}
	}
	format, ok := g.engine.Lookup(a.outputExt)
	if !ok {
		return failed(ReasonUnknownFormat, StageConvert,
			fmt.Sprintf("output format %q is not supported", a.outputExt),
			fmt.Errorf("no registry entry for %q", a.outputExt))
	}

	a.stage = StageRespond
	file, size, err := g.scratch.Open(output)
	if err != nil {
		return failed(ReasonInternal, StageRespond, "", err)
	}
	defer file.Close()

	delivery := Delivery{
		ContentType: format.MediaType,
		Filename:    deliveryName(basis, a.outputExt),
		Length:      size,
	}
	if err := resp.Deliver(delivery, file); err != nil {
		return failed(ReasonInternal, StageRespond, "", fmt.Errorf("deliver: %w", err))
	}
	return Outcome{Success: &Success{ContentType: format.MediaType, ByteLength: size}}
}

func (g *Gateway) releaseAll(a *attempt) {
	for _, f := range a.staged {
		g.scratch.Release(f)
	}
}

func (g *Gateway) report(ctx context.Context, a *attempt, outcome Outcome, elapsed time.Duration) {
	logger := logging.WithContext(ctx, g.logger)
	attrs := []logging.Attr{
		logging.String("input_ext", a.inputExt),
		logging.Int64("input_bytes", a.inputBytes),
		logging.String("output_ext", a.outputExt),
		logging.Duration("elapsed", elapsed),
	}
	if a.inputMIME != "" {
		attrs = append(attrs, logging.String("input_mime", a.inputMIME))
	}

	if outcome.OK() {
		logger.Info("conversion completed", logging.Args(attrs...)...)
		return
	}

	failure := outcome.Failure
	if failure == nil {
		failure = fail(ReasonInternal, a.stage, "", errors.New("request produced no outcome"))
	}
	attrs = append(attrs,
		logging.String(logging.FieldStage, string(failure.Stage)),
		logging.String("reason", string(failure.Reason)),
		logging.String("staged_input", a.stagedInput()),
		logging.Error(failure),
	)
	if failure.Reason.ClientError() {
		attrs = append(attrs, logging.String(logging.FieldEventType, "request_rejected"))
		logger.Warn("conversion rejected", logging.Args(attrs...)...)
		return
	}
	attrs = append(attrs,
		logging.String(logging.FieldEventType, "conversion_failed"),
		logging.String(logging.FieldErrorHint, errorHint(failure.Reason)),
	)
	logger.Error("conversion failed", logging.Args(attrs...)...)
}

func failed(reason Reason, stage Stage, message string, err error) Outcome {
	return Outcome{Failure: fail(reason, stage, message, err)}
}

func classifyEngineError(err error) *Failure {
	switch {
	case errors.Is(err, engine.ErrNotRunning):
		return fail(ReasonEngineUnavailable, StageConvert, "", err)
	case errors.Is(err, engine.ErrBusy):
		return fail(ReasonBusy, StageConvert, "", err)
	}
	if _, ok := engine.FaultKindOf(err); ok {
		return fail(ReasonConversionFailed, StageConvert, "", err)
	}
	return fail(ReasonInternal, StageConvert, "", err)
}

func errorHint(reason Reason) string {
	switch reason {
	case ReasonEngineUnavailable:
		return "check engine state with docgate status"
	case ReasonBusy:
		return "raise office.pool_size or office.queue_timeout"
	case ReasonConversionFailed:
		return "inspect the office output above; the input may be damaged or unsupported"
	default:
		return "check scratch_dir space and permissions"
	}
}

func validExtension(ext string) bool {
	if ext == "" || len(ext) > maxExtensionLength {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func deliveryName(basis, ext string) string {
	basis = strings.TrimSpace(basis)
	if basis == "" {
		basis = "converted"
	}
	return basis + "." + ext
}
