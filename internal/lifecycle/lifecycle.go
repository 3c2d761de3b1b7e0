package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"docgate/internal/api"
	"docgate/internal/config"
	"docgate/internal/deps"
	"docgate/internal/engine"
	"docgate/internal/gateway"
	"docgate/internal/httpapi"
	"docgate/internal/logging"
	"docgate/internal/office"
	"docgate/internal/preflight"
	"docgate/internal/scratch"
	"docgate/internal/upload"
)

const lockFileName = ".docgate.lock"

// ErrAlreadyRunning reports that another docgate owns the scratch directory.
var ErrAlreadyRunning = errors.New("another docgate instance is already running")

// Lifecycle starts and stops one gateway process.
type Lifecycle struct {
	cfg     *config.Config
	logger  *slog.Logger
	scratch *scratch.Manager
	handle  *engine.Handle
	gateway *gateway.Gateway
	server  *http.Server

	lockPath string
	lock     *flock.Flock

	// opMu serializes Start and Stop; mu guards the fields below and is never
	// held while waiting on the server or the engine.
	opMu      sync.Mutex
	mu        sync.Mutex
	running   bool
	listener  net.Listener
	startedAt time.Time
	serveErr  chan error
	deps      []deps.Status
}

// Option customizes a Lifecycle.
type Option func(*options)

type options struct {
	backend engine.Backend
}

// WithBackend replaces the office backend, mainly for tests.
func WithBackend(backend engine.Backend) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// New wires the scratch manager, engine handle, gateway and HTTP server for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Lifecycle, error) {
	if cfg == nil {
		return nil, errors.New("lifecycle: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	manager, err := scratch.NewManager(cfg.Paths.ScratchDir, scratch.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	backend := o.backend
	if backend == nil {
		backend, err = office.New(office.Options{
			Binary:          cfg.SofficeBinary(),
			Port:            cfg.Office.Port,
			PoolSize:        cfg.Office.PoolSize,
			ProfileTemplate: cfg.Office.Profile,
			WorkDir:         filepath.Join(cfg.Paths.ScratchDir, "office"),
			TaskTimeout:     cfg.OfficeTaskTimeout(),
			StartTimeout:    cfg.OfficeStartTimeout(),
			Logger:          logger,
		})
		if err != nil {
			return nil, fmt.Errorf("office backend: %w", err)
		}
	}

	handle := engine.NewHandle(backend,
		engine.WithLogger(logger),
		engine.WithConcurrency(cfg.Office.PoolSize),
		engine.WithQueueTimeout(cfg.OfficeQueueTimeout()),
		engine.WithUploadCap(cfg.FileUpload.FileSizeMax),
	)

	gw, err := gateway.New(manager, handle,
		gateway.WithLogger(logger),
		gateway.WithUploadCap(cfg.FileUpload.FileSizeMax),
	)
	if err != nil {
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.ScratchDir, lockFileName)
	l := &Lifecycle{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "lifecycle"),
		scratch:  manager,
		handle:   handle,
		gateway:  gw,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	router, err := httpapi.NewRouter(httpapi.Options{
		Gateway:   gw,
		Engine:    handle,
		Extractor: upload.NewExtractor(),
		Status:    httpapi.StatusFunc(l.Status),
		APIToken:  cfg.Server.APIToken,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	l.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(l.logger.Handler(), slog.LevelWarn),
	}
	return l, nil
}

// Start acquires the lock, sweeps scratch storage, starts the engine and
// opens the listener.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if running {
		return errors.New("gateway already running")
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, l.lockPath)
	}

	swept := l.scratch.Sweep(ctx, l.cfg.ScratchSweepAge())
	if len(swept.Removed) > 0 || len(swept.Errors) > 0 {
		l.logger.Info("stale scratch files swept",
			logging.Int("removed", len(swept.Removed)),
			logging.Int("errors", len(swept.Errors)),
			logging.String(logging.FieldEventType, "scratch_swept"),
		)
	}

	dependencies := preflight.CheckSystemDeps(ctx, l.cfg)
	l.mu.Lock()
	l.deps = dependencies
	l.mu.Unlock()
	l.logDependencies(dependencies)

	if err := l.handle.Start(ctx); err != nil {
		l.unlock()
		return err
	}

	listener, err := net.Listen("tcp", l.cfg.Server.Listen)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.ShutdownTimeout())
		defer cancel()
		if stopErr := l.handle.Stop(stopCtx); stopErr != nil {
			l.logger.Warn("engine stop after listen failure", logging.Error(stopErr))
		}
		l.unlock()
		return fmt.Errorf("listen %s: %w", l.cfg.Server.Listen, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		err := l.server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
		close(serveErr)
	}()

	l.mu.Lock()
	l.listener = listener
	l.serveErr = serveErr
	l.running = true
	l.startedAt = time.Now()
	l.mu.Unlock()

	attrs := []logging.Attr{
		logging.String("listen", listener.Addr().String()),
		logging.String("scratch_dir", l.scratch.Dir()),
		logging.Int("pool_size", l.cfg.Office.PoolSize),
		logging.String(logging.FieldEventType, "gateway_started"),
	}
	if l.cfg.UploadCapped() {
		attrs = append(attrs, logging.String("upload_cap", humanize.IBytes(uint64(l.cfg.FileUpload.FileSizeMax))))
	}
	l.logger.Info("gateway started", logging.Args(attrs...)...)
	return nil
}

// Stop drains HTTP, stops the engine and releases the lock. It is a no-op
// when the gateway is not running.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	serveErr := l.serveErr
	startedAt := l.startedAt
	l.mu.Unlock()

	var errs []error
	if err := l.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		_ = l.server.Close()
	}
	if err := <-serveErr; err != nil {
		errs = append(errs, fmt.Errorf("http serve: %w", err))
	}
	if err := l.handle.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("engine stop: %w", err))
	}
	l.unlock()

	l.logger.Info("gateway stopped",
		logging.Duration("uptime", time.Since(startedAt)),
		logging.String(logging.FieldEventType, "gateway_stopped"),
	)
	return errors.Join(errs...)
}

// Done delivers the serve loop's terminal error (nil after a clean Stop).
// It returns nil before Start.
func (l *Lifecycle) Done() <-chan error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.serveErr
}

// Addr returns the bound listener address, or "" when not running.
func (l *Lifecycle) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil || !l.running {
		return ""
	}
	return l.listener.Addr().String()
}

// Engine exposes the engine handle.
func (l *Lifecycle) Engine() *engine.Handle {
	return l.handle
}

// Gateway exposes the request gateway.
func (l *Lifecycle) Gateway() *gateway.Gateway {
	return l.gateway
}

// Status assembles the status payload served on /api/status.
func (l *Lifecycle) Status(ctx context.Context) api.StatusResponse {
	l.mu.Lock()
	startedAt := l.startedAt
	listen := l.cfg.Server.Listen
	if l.listener != nil {
		listen = l.listener.Addr().String()
	}
	dependencies := l.deps
	l.mu.Unlock()
	if dependencies == nil {
		dependencies = preflight.CheckSystemDeps(ctx, l.cfg)
	}

	status := api.StatusResponse{
		PID:          os.Getpid(),
		Listen:       listen,
		StartedAt:    api.FormatTime(startedAt),
		UploadCap:    l.cfg.FileUpload.FileSizeMax,
		Engine:       api.FromHealth(l.handle.Health()),
		Scratch:      api.ScratchStatus{Dir: l.scratch.Dir()},
		Dependencies: api.FromDependencies(dependencies),
	}
	if entries, err := l.scratch.List(); err == nil {
		status.Scratch.Files = len(entries)
		for _, e := range entries {
			status.Scratch.Bytes += e.Size
		}
	}
	if free, err := preflight.FreeBytes(l.scratch.Dir()); err == nil {
		status.Scratch.FreeBytes = free
	}
	return status
}

func (l *Lifecycle) logDependencies(dependencies []deps.Status) {
	for _, dep := range dependencies {
		attrs := []logging.Attr{
			logging.String("dependency", dep.Name),
			logging.String("command", dep.Command),
			logging.Bool("available", dep.Available),
		}
		if dep.Version != "" {
			attrs = append(attrs, logging.String("version", dep.Version))
		}
		if !dep.Available {
			attrs = append(attrs, logging.String("detail", dep.Detail))
		}
		l.logger.Info("dependency checked", logging.Args(attrs...)...)
	}
	if missing := deps.MissingRequired(dependencies); len(missing) > 0 {
		logging.WarnWithContext(l.logger, "required dependencies unavailable", "dependency_missing",
			logging.String("dependencies", strings.Join(missing, ", ")),
			logging.String(logging.FieldErrorHint, "install LibreOffice or set office.home"),
			logging.String(logging.FieldImpact, "the conversion engine will fail to start"),
		)
	}
}

func (l *Lifecycle) unlock() {
	if err := l.lock.Unlock(); err != nil {
		l.logger.Warn("failed to release gateway lock", logging.Error(err))
	}
}
