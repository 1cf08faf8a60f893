// Package testutil provides fixtures shared by package tests: a fake wall
// clock, throwaway git remotes, and the reference dependency graph.
package testutil

import (
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireGit skips the test when no git binary is available.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// NewRemote creates an empty bare repository and returns its path.
// The repository lives under t.TempDir and is removed with it.
func NewRemote(t *testing.T) string {
	t.Helper()
	RequireGit(t)

	dir := filepath.Join(t.TempDir(), "remote.git")
	cmd := exec.Command("git", "init", "--quiet", "--bare", dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init --bare failed: %v: %s", err, out)
	}
	return dir
}

// CacheDir returns a fresh cache root for a test.
func CacheDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cache")
}
