package office

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docgate/internal/engine"
	"docgate/internal/fileutil"
	"docgate/internal/logging"
)

const (
	defaultStopGrace = 5 * time.Second
	minStopGrace     = 250 * time.Millisecond
	outputTailLines  = 8
)

// Options configures a Local backend.
type Options struct {
	// Binary is the soffice executable, absolute or resolved through PATH.
	Binary string
	// Port is the first listener port. Zero allocates free ports.
	Port int
	// PoolSize is the number of listener instances.
	PoolSize int
	// ProfileTemplate is copied into every instance profile when set.
	ProfileTemplate string
	// WorkDir holds instance profiles and per-conversion output dirs.
	WorkDir      string
	TaskTimeout  time.Duration
	StartTimeout time.Duration
	StopGrace    time.Duration
	Logger       *slog.Logger
}

// Option customizes a Local backend beyond Options.
type Option func(*Local)

// WithExecutor injects a custom executor for conversions (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(l *Local) {
		if exec != nil {
			l.exec = exec
		}
	}
}

// WithProbe replaces the TCP readiness probe.
func WithProbe(probe ProbeFunc) Option {
	return func(l *Local) {
		if probe != nil {
			l.probe = probe
		}
	}
}

// Local runs conversions on a pool of locally launched soffice instances.
type Local struct {
	opts   Options
	binary string
	exec   Executor
	probe  ProbeFunc
	logger *slog.Logger

	mu        sync.Mutex
	instances []*instance
	idle      chan *instance
}

// New validates options and returns an unstarted backend.
func New(opts Options, extra ...Option) (*Local, error) {
	opts.Binary = strings.TrimSpace(opts.Binary)
	if opts.Binary == "" {
		return nil, errors.New("office binary required")
	}
	if strings.TrimSpace(opts.WorkDir) == "" {
		return nil, errors.New("office work dir required")
	}
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = time.Minute
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = defaultStopGrace
	}
	l := &Local{
		opts:  opts,
		exec:  commandExecutor{},
		probe: dialProbe,
	}
	for _, opt := range extra {
		opt(l)
	}
	l.logger = logging.NewComponentLogger(opts.Logger, "office")
	return l, nil
}

// Start resolves the binary, prepares every instance profile, and launches the
// listeners. Any failure stops the instances already launched.
func (l *Local) Start(ctx context.Context) error {
	binary, err := exec.LookPath(l.opts.Binary)
	if err != nil {
		return fmt.Errorf("resolve office binary %q: %w", l.opts.Binary, err)
	}
	l.binary = binary

	if l.opts.ProfileTemplate != "" {
		info, err := os.Stat(l.opts.ProfileTemplate)
		if err != nil {
			return fmt.Errorf("office profile template: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("office profile template %s is not a directory", l.opts.ProfileTemplate)
		}
	}

	instances := make([]*instance, 0, l.opts.PoolSize)
	idle := make(chan *instance, l.opts.PoolSize)
	cleanup := func() {
		for _, inst := range instances {
			_ = inst.terminate(l.opts.StopGrace)
			_ = inst.release()
		}
	}

	for n := 0; n < l.opts.PoolSize; n++ {
		port := 0
		if l.opts.Port > 0 {
			port = l.opts.Port + n
		} else if port, err = freePort(); err != nil {
			cleanup()
			return fmt.Errorf("allocate port for instance %d: %w", n, err)
		}

		inst := newInstance(n, port, l.opts.WorkDir)
		if err := inst.prepare(l.opts.ProfileTemplate); err != nil {
			_ = inst.lock.Unlock()
			cleanup()
			return err
		}
		instances = append(instances, inst)

		startCtx, cancel := context.WithTimeout(ctx, l.opts.StartTimeout)
		err := inst.launch(startCtx, binary, l.probe)
		cancel()
		if err != nil {
			cleanup()
			return err
		}
		l.logger.Info("office instance ready",
			logging.Int("instance", inst.id),
			logging.Int("port", inst.port),
			logging.Int("pid", inst.pid()),
			logging.String(logging.FieldEventType, "office_instance_ready"),
		)
		idle <- inst
	}

	l.mu.Lock()
	l.instances = instances
	l.idle = idle
	l.mu.Unlock()
	return nil
}

// Stop terminates every instance process group and releases profile locks.
func (l *Local) Stop(ctx context.Context) error {
	l.mu.Lock()
	instances := l.instances
	l.instances = nil
	l.idle = nil
	l.mu.Unlock()

	grace := stopGrace(ctx, l.opts.StopGrace)

	var errs []error
	for _, inst := range instances {
		if err := inst.terminate(grace); err != nil {
			errs = append(errs, err)
		}
		if err := inst.release(); err != nil {
			errs = append(errs, fmt.Errorf("unlock instance %d: %w", inst.id, err))
		}
	}
	return errors.Join(errs...)
}

// Convert runs one conversion on an idle instance. It does not wait for an
// instance: the engine handle bounds concurrency to the pool size, so an empty
// pool means ErrBusy.
func (l *Local) Convert(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return engine.Fault(engine.IOFault, "stat input", err)
	}
	ext := strings.TrimPrefix(filepath.Ext(outputPath), ".")
	if ext == "" {
		return engine.Fault(engine.IOFault, "output path", fmt.Errorf("output %s has no extension", outputPath))
	}

	inst, err := l.take()
	if err != nil {
		return err
	}
	defer l.put(inst)

	if !inst.alive() {
		if err := l.restart(ctx, inst); err != nil {
			return engine.Fault(engine.EngineFault, "restart instance", err)
		}
	}

	// The client going away must not abort a conversion the instance is
	// already running; the task timeout still bounds it.
	taskCtx := context.WithoutCancel(ctx)
	if l.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, l.opts.TaskTimeout)
		defer cancel()
	}

	outDir, err := os.MkdirTemp(inst.convertRoot(), "job-")
	if err != nil {
		return engine.Fault(engine.IOFault, "create output dir", err)
	}
	defer os.RemoveAll(outDir)

	tail := newLineTail(outputTailLines)
	started := time.Now()
	runErr := l.exec.Run(taskCtx, l.binary, inst.convertArgs(ext, outDir, inputPath), tail.add)
	if runErr != nil {
		return engine.Fault(engine.EngineFault, "soffice convert", withOutput(runErr, tail))
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	produced := filepath.Join(outDir, stem+"."+ext)
	if _, err := os.Stat(produced); err != nil {
		return engine.Fault(engine.EngineFault, "locate output", withOutput(errors.New("office produced no output file"), tail))
	}
	if err := fileutil.MoveFile(produced, outputPath); err != nil {
		return engine.Fault(engine.IOFault, "move output", err)
	}

	l.logger.Debug("office conversion finished",
		logging.Int("instance", inst.id),
		logging.String("output_ext", ext),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Formats returns the output formats a stock install supports.
func (l *Local) Formats() []engine.Format {
	return engine.DefaultFormats()
}

// Instances describes the pool for status output.
func (l *Local) Instances() []engine.InstanceStatus {
	l.mu.Lock()
	instances := l.instances
	l.mu.Unlock()

	out := make([]engine.InstanceStatus, 0, len(instances))
	for _, inst := range instances {
		inst.mu.Lock()
		busy := inst.busy
		inst.mu.Unlock()
		out = append(out, engine.InstanceStatus{
			ID:      inst.id,
			Port:    inst.port,
			PID:     inst.pid(),
			Busy:    busy,
			Profile: inst.profileDir,
		})
	}
	return out
}

// stopGrace clamps the per-signal grace to what is left of ctx's deadline.
// An expired deadline still leaves minStopGrace for the SIGKILL to land.
func stopGrace(ctx context.Context, grace time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return grace
	}
	return min(grace, max(time.Until(deadline), minStopGrace))
}

func (l *Local) take() (*instance, error) {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()
	if idle == nil {
		return nil, engine.ErrNotRunning
	}
	select {
	case inst := <-idle:
		inst.mu.Lock()
		inst.busy = true
		inst.mu.Unlock()
		return inst, nil
	default:
		return nil, engine.ErrBusy
	}
}

func (l *Local) put(inst *instance) {
	inst.mu.Lock()
	inst.busy = false
	inst.mu.Unlock()

	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()
	if idle == nil {
		return
	}
	select {
	case idle <- inst:
	default:
	}
}

func (l *Local) restart(ctx context.Context, inst *instance) error {
	logging.WarnWithContext(l.logger, "office instance exited; restarting", "office_instance_restart",
		logging.Int("instance", inst.id),
		logging.Error(inst.exitError()),
		logging.String(logging.FieldErrorHint, "check soffice stability and memory limits"),
		logging.String(logging.FieldImpact, "conversion delayed by instance restart"),
	)
	startCtx, cancel := context.WithTimeout(ctx, l.opts.StartTimeout)
	defer cancel()
	return inst.launch(startCtx, l.binary, l.probe)
}

type lineTail struct {
	max   int
	lines []string
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, " | ")
}

func withOutput(err error, tail *lineTail) error {
	if out := tail.String(); out != "" {
		return fmt.Errorf("%w: %s", err, out)
	}
	return err
}
