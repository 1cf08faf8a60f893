// Package config discovers which remote run log to use and where to cache
// it.
//
// Sources, highest precedence first:
//   - explicit options (the --repo and --cache-dir flags)
//   - the process environment: GIT_JOB_LOG_REPO, GIT_JOB_LOG_CACHE_DIR
//   - the first .env file found in the working directory or its ancestors
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/USEPA/git-job-log/internal/store"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "GIT_JOB_LOG"

// EnvFile is the file name searched for.
const EnvFile = ".env"

// ErrConfigNotFound is returned when no source names a remote.
var ErrConfigNotFound = errors.New("no run log remote configured: set " + EnvPrefix + "_REPO or add it to a .env file")

// Options are explicit settings; empty fields fall through to the
// environment and .env file.
type Options struct {
	Repo     string
	CacheDir string

	// Dir starts the .env search. Defaults to the working directory.
	Dir string
}

// Config is the resolved configuration.
type Config struct {
	Repo     string
	CacheDir string

	// EnvFile is the .env file consulted, if any.
	EnvFile string
}

// env is the environment layout processed by envconfig.
type env struct {
	Repo     string `envconfig:"REPO"`
	CacheDir string `envconfig:"CACHE_DIR"`
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	cfg := &Config{
		Repo:     first(opts.Repo, e.Repo),
		CacheDir: first(opts.CacheDir, e.CacheDir),
	}

	if cfg.Repo == "" || cfg.CacheDir == "" {
		dir := opts.Dir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("resolve working directory: %w", err)
			}
			dir = wd
		}

		if path, ok := FindEnvFile(dir); ok {
			vars, err := godotenv.Read(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			cfg.EnvFile = path
			cfg.Repo = first(cfg.Repo, vars[EnvPrefix+"_REPO"])
			cfg.CacheDir = first(cfg.CacheDir, vars[EnvPrefix+"_CACHE_DIR"])
		}
	}

	if cfg.Repo == "" {
		return nil, ErrConfigNotFound
	}

	if cfg.CacheDir == "" {
		dir, err := store.DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		cfg.CacheDir = dir
	}
	return cfg, nil
}

// FindEnvFile returns the first .env file in dir or its ancestors.
func FindEnvFile(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		path := filepath.Join(dir, EnvFile)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
