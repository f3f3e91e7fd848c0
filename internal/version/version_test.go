package version

import (
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	i := Info{Version: "v1.2.3", Commit: "0123456789abcdef", GoVersion: "go1.25", Platform: "linux/amd64", BuildDate: "2026-01-02"}
	got := i.String()
	want := "open-data-router v1.2.3 (commit 0123456789ab, go1.25, linux/amd64) built 2026-01-02"
	if got != want {
		t.Fatalf("String()=%q want=%q", got, want)
	}
	if s := (Info{Version: "dev"}).String(); !strings.Contains(s, "commit unknown") {
		t.Fatalf("String()=%q", s)
	}
}

func TestGetUsesLinkerVars(t *testing.T) {
	if Get().Version != Version {
		t.Fatalf("Get().Version=%q want=%q", Get().Version, Version)
	}
}
