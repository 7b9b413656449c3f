package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/sagastore/internal/printer"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for a command goroutine and a polling test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// clearEnv blanks the override variables so the host environment cannot leak
// into the configuration.
func clearEnv(t *testing.T) {
	for _, key := range []string{"REDIS_URL", "SAGASTORE_REDIS_URL", "SAGASTORE_BACKEND", "SAGASTORE_NAMESPACE", "SAGASTORE_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sagastore.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// setupRedis starts miniredis and writes a config for it.
func setupRedis(t *testing.T) (*miniredis.Miniredis, string) {
	mr := miniredis.RunT(t)
	path := writeConfig(t, fmt.Sprintf(`version: "1.0"
namespace: cli
redis:
  url: redis://%s
  events: true
versioning:
  enabled: true
logging:
  level: error
`, mr.Addr()))
	return mr, path
}

func setupBolt(t *testing.T) string {
	dbPath := filepath.Join(t.TempDir(), "sagas.db")
	return writeConfig(t, fmt.Sprintf(`version: "1.0"
namespace: cli
backend: bolt
bolt:
  path: %s
logging:
  level: error
`, dbPath))
}

// captureOutput routes printer and command output to buffers.
func captureOutput(t *testing.T) (*syncBuffer, *syncBuffer) {
	t.Helper()

	noColor := color.NoColor
	color.NoColor = true

	out, errOut := &syncBuffer{}, &syncBuffer{}
	printer.SetOutput(out, errOut)

	t.Cleanup(func() {
		color.NoColor = noColor
		printer.SetOutput(os.Stdout, os.Stderr)
	})
	return out, errOut
}

// execute runs a fresh command tree and returns its output.
func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := captureOutput(t)

	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}
