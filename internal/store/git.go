package store

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// git runs a git command inside the replica.
func (s *Store) git(ctx context.Context, args ...string) (string, error) {
	return runGit(ctx, s.local, args...)
}

// gitEnv runs a git command inside the replica with extra environment.
func (s *Store) gitEnv(ctx context.Context, env []string, args ...string) (string, error) {
	return runGitEnv(ctx, s.local, env, args...)
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	return runGitEnv(ctx, dir, nil, args...)
}

// runGitEnv runs git and returns its stdout. An empty dir runs git in the
// process working directory. Prompts are disabled so a remote that wants
// credentials fails instead of hanging.
func runGitEnv(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	full := args
	if dir != "" {
		full = append([]string{"-C", dir}, args...)
	}

	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("git", "args", strings.Join(full, " "))
	err := cmd.Run()
	if stderr.Len() > 0 {
		slog.Debug("git stderr", "args", args[0], "stderr", strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		return "", &Error{
			Code:    ErrCodeGitFailed,
			Message: "git " + args[0],
			Err:     &GitError{Args: args, Stderr: stderr.String(), Err: err},
		}
	}
	return stdout.String(), nil
}
