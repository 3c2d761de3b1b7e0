package testsupport

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"docgate/internal/engine"
	"docgate/internal/fileutil"
)

// FakeBackend is an in-memory engine.Backend. By default Convert copies the
// input file to the output path.
type FakeBackend struct {
	StartErr  error
	StopErr   error
	ConvertFn func(ctx context.Context, in, out string) error
	FormatSet []engine.Format

	mu       sync.Mutex
	calls    []ConvertCall
	starts   atomic.Int32
	stops    atomic.Int32
	converts atomic.Int32
}

// ConvertCall records one Convert invocation.
type ConvertCall struct {
	Input  string
	Output string
}

func (f *FakeBackend) Start(context.Context) error {
	f.starts.Add(1)
	return f.StartErr
}

func (f *FakeBackend) Stop(context.Context) error {
	f.stops.Add(1)
	return f.StopErr
}

func (f *FakeBackend) Convert(ctx context.Context, in, out string) error {
	f.converts.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, ConvertCall{Input: in, Output: out})
	f.mu.Unlock()
	if f.ConvertFn != nil {
		return f.ConvertFn(ctx, in, out)
	}
	if err := fileutil.CopyFile(in, out); err != nil {
		return engine.Fault(engine.IOFault, "copy", err)
	}
	return nil
}

func (f *FakeBackend) Formats() []engine.Format {
	if f.FormatSet != nil {
		return f.FormatSet
	}
	return engine.DefaultFormats()
}

// Starts reports how many times Start ran.
func (f *FakeBackend) Starts() int { return int(f.starts.Load()) }

// Stops reports how many times Stop ran.
func (f *FakeBackend) Stops() int { return int(f.stops.Load()) }

// Converts reports how many times Convert ran.
func (f *FakeBackend) Converts() int { return int(f.converts.Load()) }

// Calls returns a copy of the recorded Convert invocations.
func (f *FakeBackend) Calls() []ConvertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ConvertCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// StartedHandle returns a running engine.Handle around backend and stops it at cleanup.
func StartedHandle(t testing.TB, backend engine.Backend, opts ...engine.Option) *engine.Handle {
	t.Helper()
	h := engine.NewHandle(backend, opts...)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(func() {
		if h.State() == engine.StateRunning {
			_ = h.Stop(context.Background())
		}
	})
	return h
}
