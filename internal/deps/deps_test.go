package deps

import (
	"os"
	"path/filepath"
	"testing"

	"castkeep/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present + ` -b "${EPFILENAME}"`},
		{Name: "Missing", Command: "clearly-not-present-binary --flag"},
		{Name: "Empty", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail != `binary "clearly-not-present-binary" not found` {
		t.Fatalf("unexpected detail: %q", results[1].Detail)
	}
	if results[1].Command != "clearly-not-present-binary --flag" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for empty command: %#v", results[2])
	}
}

func TestCommandBinary(t *testing.T) {
	cases := map[string]string{
		`file -b -i "${EPFILENAME}"`:       "file",
		`LANG=C mid3v2 -T "$EPID"`:         "mid3v2",
		`'/usr/local/bin/notify' "$EPURL"`: "/usr/local/bin/notify",
		"   ":                              "",
		"A=1 B=2":                          "",
	}
	for in, want := range cases {
		if got := CommandBinary(in); got != want {
			t.Errorf("CommandBinary(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequirementsCoversOverrides(t *testing.T) {
	cfg := config.Default()
	post := "id3tag --v2"
	hook := "/usr/local/bin/notify"
	cfg.Defaults.PostHook = hook
	cfg.Subscriptions = map[string]config.Overrides{
		"7": {PostProcessCommand: &post},
		"9": {PostProcessCommand: &post},
	}

	reqs := Requirements(&cfg)
	var names []string
	for _, r := range reqs {
		names = append(names, r.Name+"="+r.Command)
		if !r.Optional {
			t.Fatalf("configured commands are optional: %#v", r)
		}
	}
	want := []string{
		`Classifier=file -b -i "${EPFILENAME}"`,
		`Post hook="/usr/local/bin/notify"`,
		"Post-processor=id3tag --v2",
	}
	if len(names) != len(want) {
		t.Fatalf("Requirements = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Requirements = %v, want %v", names, want)
		}
	}

	if Requirements(nil) != nil {
		t.Fatal("expected no requirements for a nil config")
	}
}
