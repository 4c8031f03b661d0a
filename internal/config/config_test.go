package config

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintEnvIncludesKnownKeys(t *testing.T) {
	cfg := &C{
		AppName:  "test-relay",
		Listen:   "127.0.0.1",
		Port:     3334,
		DataDir:  "/tmp/test-relay",
		LogLevel: "info",
	}
	var buf bytes.Buffer
	PrintEnv(cfg, &buf)
	out := buf.String()

	for _, want := range []string{
		"RELAY_APP_NAME=test-relay",
		"RELAY_LISTEN=127.0.0.1",
		"RELAY_PORT=3334",
		"RELAY_DATA_DIR=/tmp/test-relay",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintEnv output missing %q, got:\n%s", want, out)
		}
	}
}

func TestPrintEnvIsSorted(t *testing.T) {
	cfg := &C{AppName: "a"}
	var buf bytes.Buffer
	PrintEnv(cfg, &buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i-1] > lines[i] {
			t.Fatalf("PrintEnv output not sorted: %q before %q", lines[i-1], lines[i])
		}
	}
}
