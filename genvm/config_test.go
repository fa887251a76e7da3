package genvm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFakeEngine(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
	return path
}

func TestFindExecutableDirectPath(t *testing.T) {
	exe := writeFakeEngine(t, t.TempDir(), "genvm")
	t.Setenv("GENVMPATH", exe)

	got, err := findExecutable("genvm")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != exe {
		t.Fatalf("found %s, want %s", got, exe)
	}
}

func TestFindExecutableDirJoin(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeEngine(t, dir, "genvm")
	t.Setenv("GENVMPATH", dir)

	got, err := findExecutable("genvm")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != exe {
		t.Fatalf("found %s, want %s", got, exe)
	}
}

func TestFindExecutableBinVar(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeEngine(t, dir, "genvm")
	// GENVMPATH points nowhere useful; GENVM_BIN wins.
	t.Setenv("GENVMPATH", filepath.Join(dir, "missing"))
	t.Setenv("GENVM_BIN", dir)

	got, err := findExecutable("genvm")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != exe {
		t.Fatalf("found %s, want %s", got, exe)
	}
}

func TestFindExecutablePathFallback(t *testing.T) {
	empty := t.TempDir()
	dir := t.TempDir()
	exe := writeFakeEngine(t, dir, "genvm")
	t.Setenv("GENVMPATH", filepath.Join(empty, "missing"))
	t.Setenv("GENVM_BIN", filepath.Join(empty, "missing"))
	t.Setenv("PATH", empty+string(os.PathListSeparator)+dir)

	got, err := findExecutable("genvm")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != exe {
		t.Fatalf("found %s, want %s", got, exe)
	}
}

func TestFindExecutableMissListsCandidates(t *testing.T) {
	empty := t.TempDir()
	missing := filepath.Join(empty, "nothing-here")
	t.Setenv("GENVMPATH", missing)
	t.Setenv("GENVM_BIN", missing)
	t.Setenv("PATH", empty)

	_, err := findExecutable("genvm")
	if err == nil {
		t.Fatalf("expected lookup failure")
	}
	for _, want := range []string{missing, filepath.Join(missing, "genvm"), filepath.Join(empty, "genvm")} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not list candidate %s", err, want)
		}
	}
}

func TestFindExecutableIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	// A directory named like the engine must not satisfy the search.
	if err := os.Mkdir(filepath.Join(dir, "genvm"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("GENVMPATH", dir)
	t.Setenv("GENVM_BIN", dir)
	t.Setenv("PATH", dir)

	if _, err := findExecutable("genvm"); err == nil {
		t.Fatalf("directory accepted as engine executable")
	}
}
