package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunDemoThenInspectAndVerify(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "demo.twff")

	if code := run([]string{"twff", "demo", "-o", archive}); code != exitOK {
		t.Fatalf("demo exited %d", code)
	}
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("demo archive missing: %v", err)
	}
	if code := run([]string{"twff", "inspect", archive}); code != exitOK {
		t.Fatalf("inspect exited %d", code)
	}
	if code := run([]string{"twff", "verify", archive}); code != exitOK {
		t.Fatalf("verify exited %d", code)
	}

	rendered := filepath.Join(dir, "out.html")
	if code := run([]string{"twff", "project", "-o", rendered, archive}); code != exitOK {
		t.Fatalf("project exited %d", code)
	}
	html, err := os.ReadFile(rendered)
	if err != nil {
		t.Fatalf("read rendered output: %v", err)
	}
	if !strings.Contains(string(html), "<span") {
		t.Fatalf("expected annotated spans in output: %s", string(html))
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if code := run([]string{"twff", "frobnicate"}); code != exitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
}

func TestRunVersion(t *testing.T) {
	if code := run([]string{"twff", "version"}); code != exitOK {
		t.Fatalf("expected ok exit, got %d", code)
	}
}

func TestInspectMissingFile(t *testing.T) {
	if code := run([]string{"twff", "inspect", filepath.Join(t.TempDir(), "nope.twff")}); code != exitError {
		t.Fatalf("expected error exit, got %d", code)
	}
}
