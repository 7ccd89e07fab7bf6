package version

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	if got, want := String(), "dev (unknown) built unknown"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestAttr(t *testing.T) {
	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("starting", Attr())

	if !strings.Contains(buf.String(), "build.version=dev build.commit=unknown build.time=unknown") {
		t.Errorf("log = %q", buf.String())
	}
}
