package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// StubSoffice imitates the soffice command line closely enough for backend
// tests:
//   - with --accept=... it behaves as a long-running listener (sleeps);
//   - with --version it prints a version line;
//   - with --convert-to EXT --outdir DIR IN it copies IN to DIR/<stem>.EXT;
//   - DOCGATE_STUB_FAIL=1 makes conversions exit 1 with an error line;
//   - DOCGATE_STUB_NO_OUTPUT=1 makes conversions succeed without output;
//   - DOCGATE_STUB_EXIT_LISTENER=1 makes the listener exit immediately.
const StubSoffice = `#!/bin/sh
outdir=""
target=""
input=""
while [ $# -gt 0 ]; do
  case "$1" in
    --accept=*)
      if [ -n "$DOCGATE_STUB_EXIT_LISTENER" ]; then
        echo "listener refused to start" >&2
        exit 3
      fi
      exec sleep 300
      ;;
    --version) echo "LibreOffice 0.0.0.0 docgate-stub"; exit 0 ;;
    --convert-to) target="$2"; shift ;;
    --outdir) outdir="$2"; shift ;;
    -*) ;;
    *) input="$1" ;;
  esac
  shift
done
if [ -n "$DOCGATE_STUB_FAIL" ]; then
  echo "Error: source file could not be loaded" >&2
  exit 1
fi
if [ -n "$DOCGATE_STUB_NO_OUTPUT" ]; then
  exit 0
fi
base=$(basename "$input")
stem="${base%.*}"
echo "convert $input -> $outdir/$stem.$target"
cp "$input" "$outdir/$stem.$target"
`

// WriteStubSoffice writes the StubSoffice script as dir/soffice and returns its path.
func WriteStubSoffice(t testing.TB, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, "soffice")
	if err := os.WriteFile(path, []byte(StubSoffice), 0o755); err != nil {
		t.Fatalf("write stub soffice: %v", err)
	}
	return path
}
