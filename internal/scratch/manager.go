package scratch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docgate/internal/logging"
)

const defaultStageAttempts = 5

var (
	// ErrLimitExceeded reports that a stream was larger than the permitted size.
	ErrLimitExceeded = errors.New("scratch: size limit exceeded")
	// ErrNameExhausted reports that no unique name could be reserved.
	ErrNameExhausted = errors.New("scratch: could not reserve a unique name")
)

// StagedFile is an on-disk temporary file owned by exactly one request.
type StagedFile struct {
	Path      string
	Extension string
	Size      int64
}

// Name returns the base name of the staged file.
func (f StagedFile) Name() string {
	if f.Path == "" {
		return ""
	}
	return filepath.Base(f.Path)
}

// Manager creates and reclaims staged files inside a single directory.
type Manager struct {
	dir      string
	logger   *slog.Logger
	attempts int
	newID    func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for release and sweep warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithIDSource overrides the unique-suffix generator.
func WithIDSource(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithAttempts bounds how many names Stage tries before giving up.
func WithAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.attempts = n
		}
	}
}

// NewManager prepares a manager rooted at dir, creating the directory when needed.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("scratch: directory must be set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: create directory: %w", err)
	}
	m := &Manager{
		dir:      dir,
		logger:   logging.NewNop(),
		attempts: defaultStageAttempts,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "scratch")
	return m, nil
}

// Dir returns the scratch directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Stage reserves an empty file named <basis>-<unique>.<ext>. The file is
// created exclusively; a clash is retried with a fresh suffix.
func (m *Manager) Stage(basis, ext string) (StagedFile, error) {
	stem := SanitizeBasis(basis)
	ext = NormalizeExtension(ext)

	for attempt := 0; attempt < m.attempts; attempt++ {
		name := stem + "-" + m.newID()
		if ext != "" {
			name += "." + ext
		}
		path := filepath.Join(m.dir, name)

		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return StagedFile{}, fmt.Errorf("scratch: create %s: %w", name, err)
		}
		if err := file.Close(); err != nil {
			_ = os.Remove(path)
			return StagedFile{}, fmt.Errorf("scratch: close %s: %w", name, err)
		}
		return StagedFile{Path: path, Extension: ext}, nil
	}
	return StagedFile{}, fmt.Errorf("%w after %d attempts", ErrNameExhausted, m.attempts)
}

// Fill copies src into the staged file, replacing any existing content. When
// limit is positive and src holds more than limit bytes, ErrLimitExceeded is
// returned and the partial content is truncated away.
func (m *Manager) Fill(f *StagedFile, src io.Reader, limit int64) (int64, error) {
	if f == nil || f.Path == "" {
		return 0, errors.New("scratch: fill on unstaged file")
	}
	out, err := os.OpenFile(f.Path, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("scratch: open %s: %w", f.Name(), err)
	}
	defer out.Close()

	reader := src
	if limit > 0 {
		reader = io.LimitReader(src, limit+1)
	}
	written, err := io.Copy(out, reader)
	if err != nil {
		return written, fmt.Errorf("scratch: write %s: %w", f.Name(), err)
	}
	if limit > 0 && written > limit {
		_ = out.Truncate(0)
		return written, ErrLimitExceeded
	}
	if err := out.Close(); err != nil {
		return written, fmt.Errorf("scratch: close %s: %w", f.Name(), err)
	}
	f.Size = written
	return written, nil
}

// Open returns the staged file for reading together with its current size.
func (m *Manager) Open(f StagedFile) (*os.File, int64, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("scratch: open %s: %w", f.Name(), err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("scratch: stat %s: %w", f.Name(), err)
	}
	return file, info.Size(), nil
}

// Release removes the staged file. A missing file is not an error, and
// removal failures are logged rather than returned.
func (m *Manager) Release(f StagedFile) {
	if f.Path == "" {
		return
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("failed to release scratch file",
			logging.String("path", f.Path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "scratch_release_failed"),
			logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed until next sweep"),
		)
	}
}
