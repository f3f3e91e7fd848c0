package admincli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/r9s-ai/open-data-router/internal/version"
)

func TestVersionCmdOutput(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(nil)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute version cmd: %v", err)
	}

	got := strings.TrimSpace(buf.String())
	want := strings.TrimSpace(fmt.Sprint(version.Get()))
	if got != want {
		t.Fatalf("version output=%q want=%q", got, want)
	}
}

func TestRootCmdSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, path := range [][]string{
		{"version"},
		{"validate", "config"},
		{"validate", "keys"},
		{"call"},
		{"table"},
		{"view"},
		{"token", "create"},
	} {
		c, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("find %v: %v", path, err)
		}
		if c.Name() != path[len(path)-1] {
			t.Fatalf("find %v resolved to %q", path, c.Name())
		}
	}
}
