package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"docgate/internal/logging"
)

// Backend is the external engine the handle drives. Implementations may be
// called concurrently from Convert once Start has returned nil.
type Backend interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Convert(ctx context.Context, inputPath, outputPath string) error
	Formats() []Format
}

// InstanceStatus is a diagnostic view of one backend worker.
type InstanceStatus struct {
	ID      int    `json:"id"`
	Port    int    `json:"port"`
	PID     int    `json:"pid"`
	Busy    bool   `json:"busy"`
	Profile string `json:"profile"`
}

// Inspector is implemented by backends that can describe their workers.
type Inspector interface {
	Instances() []InstanceStatus
}

// Health summarizes the handle for status endpoints.
type Health struct {
	State     State            `json:"-"`
	StateName string           `json:"state"`
	Since     time.Time        `json:"since"`
	InFlight  int              `json:"in_flight"`
	Capacity  int              `json:"capacity"`
	Formats   int              `json:"formats"`
	LastError string           `json:"last_error,omitempty"`
	Instances []InstanceStatus `json:"instances,omitempty"`
}

// Handle owns the single shared engine for the process.
type Handle struct {
	backend      Backend
	logger       *slog.Logger
	queueTimeout time.Duration
	uploadCap    int64

	mu       sync.RWMutex
	state    State
	since    time.Time
	lastErr  error
	registry *Registry

	inflight sync.WaitGroup
	active   chan struct{}
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the handle logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithConcurrency bounds how many conversions run at once. Zero or less means one.
func WithConcurrency(n int) Option {
	return func(h *Handle) {
		if n < 1 {
			n = 1
		}
		h.active = make(chan struct{}, n)
	}
}

// WithQueueTimeout bounds how long Convert waits for a free slot before ErrBusy.
func WithQueueTimeout(d time.Duration) Option {
	return func(h *Handle) {
		h.queueTimeout = d
	}
}

// WithUploadCap records the configured upload cap so Start can report it.
func WithUploadCap(limit int64) Option {
	return func(h *Handle) {
		h.uploadCap = limit
	}
}

// NewHandle wraps backend in a Stopped handle.
func NewHandle(backend Backend, opts ...Option) *Handle {
	h := &Handle{
		backend:      backend,
		logger:       logging.NewNop(),
		queueTimeout: 30 * time.Second,
		state:        StateStopped,
		since:        time.Now(),
		active:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.NewComponentLogger(h.logger, "engine")
	return h
}

// Start launches the backend and loads the format registry. Failure leaves the
// handle Failed for the rest of the process lifetime.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.state != StateStopped {
		current := h.state
		h.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, current)
	}
	h.setStateLocked(StateStarting)
	h.mu.Unlock()

	started := time.Now()
	h.logger.Info("starting conversion engine",
		logging.Int("capacity", cap(h.active)),
		logging.String(logging.FieldEventType, "engine_starting"),
	)
	if h.uploadCap > 0 {
		h.logger.Info("upload size limit configured",
			logging.Int64("file_size_max", h.uploadCap),
			logging.String(logging.FieldEventType, "upload_limit"),
		)
	} else {
		logging.WarnWithContext(h.logger, "upload size limit not configured", "upload_limit_missing",
			logging.String(logging.FieldErrorHint, "set fileupload.fileSizeMax"),
			logging.String(logging.FieldImpact, "uploads of any size are accepted"),
		)
	}

	if err := h.backend.Start(ctx); err != nil {
		h.mu.Lock()
		h.lastErr = err
		h.setStateLocked(StateFailed)
		h.mu.Unlock()
		h.logger.Error("conversion engine failed to start",
			logging.Error(err),
			logging.Duration("elapsed", time.Since(started)),
			logging.String(logging.FieldEventType, "engine_start_failed"),
			logging.String(logging.FieldErrorHint, "check office.home and that soffice runs headless"),
		)
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	registry := NewRegistry(h.backend.Formats())

	h.mu.Lock()
	h.registry = registry
	h.setStateLocked(StateRunning)
	h.mu.Unlock()

	h.logger.Info("conversion engine running",
		logging.Int("formats", registry.Len()),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "engine_running"),
	)
	return nil
}

// Stop waits for in-flight conversions, bounded by ctx, then stops the backend.
// New conversions fail with ErrNotRunning as soon as Stop is entered.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	if h.state != StateRunning {
		current := h.state
		h.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", ErrInvalidTransition, current)
	}
	h.setStateLocked(StateStopping)
	h.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		logging.WarnWithContext(h.logger, "stopping engine with conversions still in flight", "engine_stop_forced",
			logging.Int("in_flight", len(h.active)),
			logging.String(logging.FieldErrorHint, "raise server.shutdown_timeout"),
			logging.String(logging.FieldImpact, "in-flight conversions will fail"),
		)
	}

	stopCtx, cancel := stopContext(ctx)
	err := h.backend.Stop(stopCtx)
	cancel()

	h.mu.Lock()
	if err != nil {
		h.lastErr = err
	}
	h.setStateLocked(StateStopped)
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("conversion engine stop failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "engine_stop_failed"),
		)
		return fmt.Errorf("%w: stop: %w", ErrInternalFault, err)
	}
	h.logger.Info("conversion engine stopped", logging.String(logging.FieldEventType, "engine_stopped"))
	return nil
}

// stopContext detaches the backend stop from ctx cancellation but keeps its
// deadline, so the backend can size its own grace periods to what is left.
func stopContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return detached, func() {}
}

// Convert converts inputPath into outputPath. It never blocks longer than the
// queue timeout waiting for capacity and fails immediately when not Running.
func (h *Handle) Convert(ctx context.Context, inputPath, outputPath string) error {
	h.mu.RLock()
	if h.state != StateRunning {
		current := h.state
		h.mu.RUnlock()
		return fmt.Errorf("%w (state %s)", ErrNotRunning, current)
	}
	h.inflight.Add(1)
	h.mu.RUnlock()
	defer h.inflight.Done()

	if err := h.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-h.active }()

	err := h.backend.Convert(ctx, inputPath, outputPath)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBusy) {
		return err
	}
	if _, ok := FaultKindOf(err); ok {
		return err
	}
	return Fault(EngineFault, "convert", err)
}

func (h *Handle) acquire(ctx context.Context) error {
	select {
	case h.active <- struct{}{}:
		return nil
	default:
	}

	var timeout <-chan time.Time
	if h.queueTimeout > 0 {
		timer := time.NewTimer(h.queueTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case h.active <- struct{}{}:
		return nil
	case <-timeout:
		return fmt.Errorf("%w: no conversion slot free after %s", ErrBusy, h.queueTimeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
	}
}

// Lookup resolves an output extension through the registry loaded at start.
func (h *Handle) Lookup(ext string) (Format, bool) {
	return h.Registry().Lookup(ext)
}

// Registry returns the registry loaded at start, or nil before the first
// successful start.
func (h *Handle) Registry() *Registry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Health returns a snapshot for diagnostics.
func (h *Handle) Health() Health {
	h.mu.RLock()
	health := Health{
		State:     h.state,
		StateName: h.state.String(),
		Since:     h.since,
		InFlight:  len(h.active),
		Capacity:  cap(h.active),
		Formats:   h.registry.Len(),
	}
	if h.lastErr != nil {
		health.LastError = strings.TrimSpace(h.lastErr.Error())
	}
	h.mu.RUnlock()

	if inspector, ok := h.backend.(Inspector); ok {
		health.Instances = inspector.Instances()
	}
	return health
}

func (h *Handle) setStateLocked(state State) {
	h.state = state
	h.since = time.Now()
}
