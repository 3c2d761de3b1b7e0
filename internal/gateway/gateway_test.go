package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"docgate/internal/engine"
	"docgate/internal/gateway"
	"docgate/internal/scratch"
	"docgate/internal/testsupport"
)

type recordingResponder struct {
	mu       sync.Mutex
	delivery gateway.Delivery
	body     []byte
	err      error
	panicMsg string
	calls    int
}

func (r *recordingResponder) Deliver(d gateway.Delivery, body io.Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	if r.err != nil {
		return r.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	r.delivery = d
	r.body = data
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

type fixture struct {
	gateway *gateway.Gateway
	scratch *scratch.Manager
	backend *testsupport.FakeBackend
	logs    *syncBuffer
}

func newFixture(t *testing.T, backend *testsupport.FakeBackend, start bool, opts ...gateway.Option) *fixture {
	t.Helper()
	return newFixtureWithScratch(t, backend, start, nil, opts...)
}

func newFixtureWithScratch(t *testing.T, backend *testsupport.FakeBackend, start bool, scratchOpts []scratch.Option, opts ...gateway.Option) *fixture {
	t.Helper()
	if backend == nil {
		backend = &testsupport.FakeBackend{}
	}
	manager, err := scratch.NewManager(filepath.Join(t.TempDir(), "scratch"), scratchOpts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	var handle *engine.Handle
	if start {
		handle = testsupport.StartedHandle(t, backend, engine.WithConcurrency(4))
	} else {
		handle = engine.NewHandle(backend)
	}
	logs := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts = append([]gateway.Option{gateway.WithLogger(logger)}, opts...)
	g, err := gateway.New(manager, handle, opts...)
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	return &fixture{gateway: g, scratch: manager, backend: backend, logs: logs}
}

func (f *fixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := f.scratch.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		t.Fatalf("scratch files left behind: %v", names)
	}
}

func request(name, target, body string) gateway.Request {
	return gateway.Request{SourceFilename: name, Source: strings.NewReader(body), TargetExtension: target}
}

func TestHandleConvertsReportToPDF(t *testing.T) {
	f := newFixture(t, nil, true)
	resp := &recordingResponder{}

	outcome := f.gateway.Handle(context.Background(), request("report.odt", "pdf", "hello world"), resp)
	if !outcome.OK() {
		t.Fatalf("expected success, got %v", outcome.Failure)
	}
	if outcome.Success.ContentType != "application/pdf" || outcome.Success.ByteLength != int64(len("hello world")) {
		t.Fatalf("unexpected success %+v", outcome.Success)
	}
	if resp.delivery.Filename != "report.pdf" {
		t.Fatalf("unexpected delivery filename %q", resp.delivery.Filename)
	}
	if resp.delivery.ContentType != "application/pdf" || resp.delivery.Length != int64(len("hello world")) {
		t.Fatalf("unexpected delivery %+v", resp.delivery)
	}
	if string(resp.body) != "hello world" {
		t.Fatalf("unexpected body %q", resp.body)
	}

	calls := f.backend.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one engine call, got %d", len(calls))
	}
	in, out := filepath.Base(calls[0].Input), filepath.Base(calls[0].Output)
	if !strings.HasPrefix(in, "report-") || !strings.HasSuffix(in, ".odt") {
		t.Fatalf("unexpected staged input %q", in)
	}
	if !strings.HasSuffix(out, ".pdf") {
		t.Fatalf("unexpected staged output %q", out)
	}
	f.assertScratchEmpty(t)

	entries := f.logs.entries(t)
	var found bool
	for _, e := range entries {
		if e["msg"] != "conversion completed" {
			continue
		}
		found = true
		if e["level"] != "INFO" || e["input_ext"] != "odt" || e["output_ext"] != "pdf" {
			t.Fatalf("unexpected success log %v", e)
		}
		if e["input_bytes"] != float64(len("hello world")) {
			t.Fatalf("unexpected input_bytes %v", e["input_bytes"])
		}
		if _, ok := e["elapsed"]; !ok {
			t.Fatalf("success log missing elapsed: %v", e)
		}
	}
	if !found {
		t.Fatalf("no success log line in %v", entries)
	}
}

func TestHandleUnknownFormatRunsEngineAndCleansUp(t *testing.T) {
	f := newFixture(t, nil, true)
	resp := &recordingResponder{}

	outcome := f.gateway.Handle(context.Background(), request("report.odt", "xyz", "data"), resp)
	if outcome.OK() {
		t.Fatal("expected failure for unknown format")
	}
	if outcome.Failure.Reason != gateway.ReasonUnknownFormat || outcome.Failure.Stage != gateway.StageConvert {
		t.Fatalf("unexpected failure %+v", outcome.Failure)
	}
	if f.backend.Converts() != 1 {
		t.Fatalf("expected the engine to be invoked once, got %d", f.backend.Converts())
	}
	if resp.calls != 0 {
		t.Fatal("responder must not be called on failure")
	}
	f.assertScratchEmpty(t)
}

func TestHandleFailuresLeaveNothingBehind(t *testing.T) {
	tests := []struct {
		name        string
		req         gateway.Request
		convert     func(ctx context.Context, in, out string) error
		start       bool
		responder   *recordingResponder
		opts        []gateway.Option
		scratchOpts []scratch.Option
		prepare     func(t *testing.T, f *fixture)
		wantReason  gateway.Reason
		wantStage   gateway.Stage
		wantConvert int
	}{
		{
			name:       "missing input extension",
			req:        request("README", "pdf", "x"),
			start:      true,
			wantReason: gateway.ReasonInvalidFormat,
			wantStage:  gateway.StageUpload,
		},
		{
			name:       "unusable target",
			req:        request("a.odt", "../pdf", "x"),
			start:      true,
			wantReason: gateway.ReasonInvalidFormat,
			wantStage:  gateway.StageUpload,
		},
		{
			name:       "over the cap",
			req:        request("a.odt", "pdf", "0123456789"),
			start:      true,
			opts:       []gateway.Option{gateway.WithUploadCap(4)},
			wantReason: gateway.ReasonTooLarge,
			wantStage:  gateway.StageUpload,
		},
		{
			name:       "broken upload stream",
			req:        gateway.Request{SourceFilename: "a.odt", Source: io.MultiReader(strings.NewReader("part"), failingReader{}), TargetExtension: "pdf"},
			start:      true,
			wantReason: gateway.ReasonMalformedUpload,
			wantStage:  gateway.StageUpload,
		},
		{
			name:  "scratch dir gone",
			req:   request("a.odt", "pdf", "x"),
			start: true,
			prepare: func(t *testing.T, f *fixture) {
				if err := os.RemoveAll(f.scratch.Dir()); err != nil {
					t.Fatalf("remove scratch dir: %v", err)
				}
			},
			wantReason: gateway.ReasonInternal,
			wantStage:  gateway.StageStage,
		},
		{
			name:  "output name exhausted",
			req:   request("a.odt", "odt", "x"),
			start: true,
			scratchOpts: []scratch.Option{
				scratch.WithIDSource(func() string { return "fixed" }),
				scratch.WithAttempts(1),
			},
			wantReason: gateway.ReasonInternal,
			wantStage:  gateway.StageStage,
		},
		{
			name:       "engine not running",
			req:        request("a.odt", "pdf", "x"),
			wantReason: gateway.ReasonEngineUnavailable,
			wantStage:  gateway.StageConvert,
		},
		{
			name:        "engine busy",
			req:         request("a.odt", "pdf", "x"),
			start:       true,
			convert:     func(context.Context, string, string) error { return engine.ErrBusy },
			wantReason:  gateway.ReasonBusy,
			wantStage:   gateway.StageConvert,
			wantConvert: 1,
		},
		{
			name:  "engine fault",
			req:   request("a.odt", "pdf", "x"),
			start: true,
			convert: func(context.Context, string, string) error {
				return engine.Fault(engine.EngineFault, "soffice", errors.New("source file could not be loaded"))
			},
			wantReason:  gateway.ReasonConversionFailed,
			wantStage:   gateway.StageConvert,
			wantConvert: 1,
		},
		{
			name:        "delivery error",
			req:         request("a.odt", "pdf", "x"),
			start:       true,
			responder:   &recordingResponder{err: errors.New("client went away")},
			wantReason:  gateway.ReasonInternal,
			wantStage:   gateway.StageRespond,
			wantConvert: 1,
		},
		{
			name:        "delivery panic",
			req:         request("a.odt", "pdf", "x"),
			start:       true,
			responder:   &recordingResponder{panicMsg: "writer exploded"},
			wantReason:  gateway.ReasonInternal,
			wantStage:   gateway.StageRespond,
			wantConvert: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixtureWithScratch(t, &testsupport.FakeBackend{ConvertFn: tc.convert}, tc.start, tc.scratchOpts, tc.opts...)
			if tc.prepare != nil {
				tc.prepare(t, f)
			}
			resp := tc.responder
			if resp == nil {
				resp = &recordingResponder{}
			}

			outcome := f.gateway.Handle(context.Background(), tc.req, resp)
			if outcome.OK() || outcome.Failure == nil {
				t.Fatalf("expected failure, got %+v", outcome)
			}
			if outcome.Failure.Reason != tc.wantReason {
				t.Fatalf("reason: got %s want %s (%v)", outcome.Failure.Reason, tc.wantReason, outcome.Failure)
			}
			if outcome.Failure.Stage != tc.wantStage {
				t.Fatalf("stage: got %s want %s", outcome.Failure.Stage, tc.wantStage)
			}
			if outcome.Failure.Message == "" {
				t.Fatal("failure must carry a client message")
			}
			if got := f.backend.Converts(); got != tc.wantConvert {
				t.Fatalf("engine calls: got %d want %d", got, tc.wantConvert)
			}
			f.assertScratchEmpty(t)

			entries := f.logs.entries(t)
			if len(entries) == 0 {
				t.Fatal("expected a failure log line")
			}
			last := entries[len(entries)-1]
			if last["stage"] != string(tc.wantStage) {
				t.Fatalf("failure log missing stage: %v", last)
			}
			wantLevel := "ERROR"
			if tc.wantReason.ClientError() {
				wantLevel = "WARN"
			}
			if last["level"] != wantLevel {
				t.Fatalf("log level: got %v want %s", last["level"], wantLevel)
			}
		})
	}
}

func TestFailureLogNamesStagedInputNotUploadName(t *testing.T) {
	backend := &testsupport.FakeBackend{ConvertFn: func(context.Context, string, string) error {
		return engine.Fault(engine.EngineFault, "soffice", errors.New("boom"))
	}}
	f := newFixture(t, backend, true)

	f.gateway.Handle(context.Background(), request("Quarterly Report.docx", "pdf", "x"), &recordingResponder{})

	entries := f.logs.entries(t)
	last := entries[len(entries)-1]
	staged, _ := last["staged_input"].(string)
	if !strings.HasPrefix(staged, "Quarterly_Report-") || !strings.HasSuffix(staged, ".docx") {
		t.Fatalf("unexpected staged_input %q", staged)
	}
	if msg, _ := last["error"].(string); !strings.Contains(msg, "boom") {
		t.Fatalf("failure log missing error detail: %v", last)
	}
}

func TestHandleConcurrentSameNameRequests(t *testing.T) {
	f := newFixture(t, nil, true)
	const n = 16

	var wg sync.WaitGroup
	outcomes := make([]gateway.Outcome, n)
	responders := make([]*recordingResponder, n)
	for i := 0; i < n; i++ {
		responders[i] = &recordingResponder{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf("document %d", i)
			outcomes[i] = f.gateway.Handle(context.Background(), request("same.odt", "pdf", body), responders[i])
		}(i)
	}
	wg.Wait()

	for i, outcome := range outcomes {
		if !outcome.OK() {
			t.Fatalf("request %d failed: %v", i, outcome.Failure)
		}
		if want := fmt.Sprintf("document %d", i); string(responders[i].body) != want {
			t.Fatalf("request %d got body %q want %q", i, responders[i].body, want)
		}
	}

	seen := make(map[string]bool)
	for _, call := range f.backend.Calls() {
		if seen[call.Input] || seen[call.Output] {
			t.Fatalf("staged path reused: %+v", call)
		}
		seen[call.Input] = true
		seen[call.Output] = true
	}
	f.assertScratchEmpty(t)
}

func TestRejectLogsClientFailure(t *testing.T) {
	f := newFixture(t, nil, true)
	outcome := f.gateway.Reject(context.Background(), gateway.ReasonNotMultipart, errors.New("text/plain"))
	if outcome.OK() || outcome.Failure.Reason != gateway.ReasonNotMultipart {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if f.backend.Converts() != 0 {
		t.Fatal("reject must not touch the engine")
	}
	entries := f.logs.entries(t)
	if len(entries) != 1 || entries[0]["level"] != "WARN" {
		t.Fatalf("expected one WARN line, got %v", entries)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	manager, err := scratch.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := gateway.New(nil, engine.NewHandle(&testsupport.FakeBackend{})); err == nil {
		t.Fatal("expected error without scratch manager")
	}
	if _, err := gateway.New(manager, nil); err == nil {
		t.Fatal("expected error without engine")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
