package version

import (
	"bytes"
	"log/slog"
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.Commit == "" {
		t.Error("Commit should not be empty")
	}
	if info.BuildTime == "" {
		t.Error("BuildTime should not be empty")
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestInfo_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("starting", "build", Get())

	out := buf.String()
	if !strings.Contains(out, "build.version="+Version) {
		t.Errorf("expected grouped version attribute, got %q", out)
	}
	if !strings.Contains(out, "build.go_version=") {
		t.Errorf("expected grouped go_version attribute, got %q", out)
	}
}
