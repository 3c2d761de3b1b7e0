package office

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"docgate/internal/fileutil"
)

// ProbeFunc reports whether an instance listening on port is ready.
type ProbeFunc func(ctx context.Context, port int) error

// instance is one soffice listener with its own profile.
type instance struct {
	id         int
	port       int
	dir        string
	profileDir string
	lock       *flock.Flock

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	exitErr error
	busy    bool
}

func newInstance(id, port int, workDir string) *instance {
	dir := filepath.Join(workDir, "instance-"+strconv.Itoa(id))
	return &instance{
		id:         id,
		port:       port,
		dir:        dir,
		profileDir: filepath.Join(dir, "profile"),
		lock:       flock.New(dir + ".lock"),
	}
}

// profileURL is the UserInstallation value soffice expects.
func (i *instance) profileURL() string {
	u := url.URL{Scheme: "file", Path: i.profileDir}
	return u.String()
}

// prepare locks the instance directory and seeds its profile from template.
func (i *instance) prepare(template string) error {
	if err := os.MkdirAll(filepath.Dir(i.dir), 0o755); err != nil {
		return fmt.Errorf("create office work dir: %w", err)
	}
	ok, err := i.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock instance %d: %w", i.id, err)
	}
	if !ok {
		return fmt.Errorf("instance %d profile %s is locked by another process", i.id, i.dir)
	}

	if template != "" {
		if err := os.RemoveAll(i.profileDir); err != nil {
			return fmt.Errorf("reset instance %d profile: %w", i.id, err)
		}
		if err := fileutil.CopyDir(template, i.profileDir); err != nil {
			return fmt.Errorf("copy profile template: %w", err)
		}
	}
	if err := os.MkdirAll(i.profileDir, 0o700); err != nil {
		return fmt.Errorf("create instance %d profile: %w", i.id, err)
	}
	if err := os.MkdirAll(i.convertRoot(), 0o700); err != nil {
		return fmt.Errorf("create instance %d work dir: %w", i.id, err)
	}
	return nil
}

func (i *instance) convertRoot() string {
	return filepath.Join(i.dir, "convert")
}

func (i *instance) listenerArgs() []string {
	return []string{
		"-env:UserInstallation=" + i.profileURL(),
		"--headless",
		"--invisible",
		"--nocrashreport",
		"--nodefault",
		"--nofirststartwizard",
		"--nolockcheck",
		"--nologo",
		"--norestore",
		fmt.Sprintf("--accept=socket,host=127.0.0.1,port=%d,tcpNoDelay=1;urp;StarOffice.ComponentContext", i.port),
	}
}

func (i *instance) convertArgs(ext, outDir, input string) []string {
	return []string{
		"-env:UserInstallation=" + i.profileURL(),
		"--headless",
		"--invisible",
		"--nolockcheck",
		"--nologo",
		"--norestore",
		"--convert-to", ext,
		"--outdir", outDir,
		input,
	}
}

// launch starts the listener process in its own process group and waits for
// probe to succeed, the process to exit, or ctx to end.
func (i *instance) launch(ctx context.Context, binary string, probe ProbeFunc) error {
	cmd := exec.Command(binary, i.listenerArgs()...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Dir = i.dir
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start instance %d: %w", i.id, err)
	}

	done := make(chan struct{})
	i.mu.Lock()
	i.cmd = cmd
	i.done = done
	i.exitErr = nil
	i.mu.Unlock()

	go func() {
		err := cmd.Wait()
		i.mu.Lock()
		i.exitErr = err
		i.mu.Unlock()
		close(done)
	}()

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ready := make(chan error, 1)
	go func() { ready <- probe(probeCtx, i.port) }()

	select {
	case err := <-ready:
		if err != nil {
			_ = i.terminate(time.Second)
			return fmt.Errorf("instance %d not ready on port %d: %w", i.id, i.port, err)
		}
		return nil
	case <-done:
		return fmt.Errorf("instance %d exited during start: %w", i.id, i.exitError())
	case <-ctx.Done():
		_ = i.terminate(time.Second)
		return fmt.Errorf("instance %d start: %w", i.id, ctx.Err())
	}
}

func (i *instance) alive() bool {
	i.mu.Lock()
	done := i.done
	i.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (i *instance) pid() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cmd == nil || i.cmd.Process == nil {
		return 0
	}
	return i.cmd.Process.Pid
}

func (i *instance) exitError() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.exitErr == nil {
		return errors.New("exited with status 0")
	}
	return i.exitErr
}

// terminate sends SIGTERM to the process group and escalates to SIGKILL after grace.
func (i *instance) terminate(grace time.Duration) error {
	i.mu.Lock()
	cmd, done := i.cmd, i.done
	i.mu.Unlock()
	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}

	if err := killGroup(cmd.Process.Pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("signal instance %d: %w", i.id, err)
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	if err := killGroup(cmd.Process.Pid, unix.SIGKILL); err != nil {
		return fmt.Errorf("kill instance %d: %w", i.id, err)
	}
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("instance %d did not exit after SIGKILL", i.id)
	}
}

func (i *instance) release() error {
	_ = os.RemoveAll(i.convertRoot())
	return i.lock.Unlock()
}

// dialProbe waits until a TCP connection to 127.0.0.1:port succeeds.
func dialProbe(ctx context.Context, port int) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	var dialer net.Dialer
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, time.Second)
		conn, err := dialer.DialContext(attemptCtx, "tcp", addr)
		cancel()
		if err == nil {
			_ = conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last dial error: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

// freePort asks the kernel for an unused loopback port.
func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
