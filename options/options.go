// Package options provides the set of options that configure the behavior of the kdice program.
package options

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/telemetry"
	"github.com/kdice/kdice/internal/workload"
	"github.com/kdice/kdice/pkg/log"
	"github.com/mitchellh/go-homedir"
)

const ContextKey ctxKey = iota

const (
	// DefaultStateDir is used when --state-dir is not given.
	DefaultStateDir = ".kdice"

	// DefaultWorkloadFile is looked up in the working directory when --workload is not given.
	DefaultWorkloadFile = "kdice.hcl"

	// DefaultKconfigRoot is the top-level Kconfig file of a kernel tree.
	DefaultKconfigRoot = "Kconfig"

	defaultLogLevel = log.InfoLevel
)

type ctxKey byte

// SearchOptions are the budgets and tuning of the search. Zero values are filled from the
// workload descriptor's search block.
type SearchOptions struct {
	TimeBudget time.Duration
	// ValidateTimeout bounds one oracle call, 0 means only the stage timeouts apply.
	ValidateTimeout time.Duration
	MaxRounds       int
	MaxGroupSize    int
	Parallelism     int
}

// KdiceOptions represents options that configure the behavior of the kdice program.
type KdiceOptions struct {
	Writer    io.Writer
	ErrWriter io.Writer
	Logger    log.Logger
	// BaselinePath is the .config to debloat.
	BaselinePath string
	KernelSrc    string
	Arch         string
	WorkloadPath string
	StateDir     string
	// KconfigRoot is relative to KernelSrc.
	KconfigRoot       string
	LogFormat         string
	TelemetryExporter string
	Search            SearchOptions
	LogLevel          log.Level
	// Fresh discards the rounds persisted by an earlier run.
	Fresh bool
}

// NewKdiceOptions returns options writing to the standard streams.
func NewKdiceOptions() *KdiceOptions {
	return NewKdiceOptionsWithWriters(os.Stdout, os.Stderr)
}

func NewKdiceOptionsWithWriters(stdout, stderr io.Writer) *KdiceOptions {
	return &KdiceOptions{
		Writer:            stdout,
		ErrWriter:         stderr,
		Logger:            log.New(log.WithOutput(stderr), log.WithLevel(defaultLogLevel), log.WithFormatter(log.NewTextFormatter(stderr))),
		LogLevel:          defaultLogLevel,
		LogFormat:         log.FormatText,
		StateDir:          DefaultStateDir,
		KconfigRoot:       DefaultKconfigRoot,
		TelemetryExporter: telemetry.ExporterNone,
	}
}

// OptionsFromContext tries to retrieve options from context, otherwise, returns its own instance.
func (opts *KdiceOptions) OptionsFromContext(ctx context.Context) *KdiceOptions {
	if val := ctx.Value(ContextKey); val != nil {
		if opts, ok := val.(*KdiceOptions); ok {
			return opts
		}
	}

	return opts
}

// ExpandPaths expands ~ in every path option and makes them absolute.
func (opts *KdiceOptions) ExpandPaths() error {
	for _, path := range []*string{&opts.BaselinePath, &opts.KernelSrc, &opts.WorkloadPath, &opts.StateDir} {
		if *path == "" {
			continue
		}

		expanded, err := homedir.Expand(*path)
		if err != nil {
			return errors.New(err)
		}

		if expanded, err = filepath.Abs(expanded); err != nil {
			return errors.New(err)
		}

		*path = expanded
	}

	return nil
}

// MergeSearch fills the search options not set on the command line from the descriptor's
// search block.
func (opts *KdiceOptions) MergeSearch(cfg workload.SearchConfig) error {
	defaults := SearchOptions{
		MaxRounds:    cfg.MaxRounds,
		MaxGroupSize: cfg.MaxGroupSize,
		Parallelism:  cfg.Parallelism,
	}

	for _, setting := range []struct {
		dst  *time.Duration
		name string
		val  string
	}{
		{&defaults.TimeBudget, "time_budget", cfg.TimeBudget},
		{&defaults.ValidateTimeout, "validate_timeout", cfg.ValidateTimeout},
	} {
		if setting.val == "" {
			continue
		}

		duration, err := time.ParseDuration(setting.val)
		if err != nil {
			return errors.Errorf("invalid %s %q: %w", setting.name, setting.val, err)
		}

		*setting.dst = duration
	}

	if err := mergo.Merge(&opts.Search, defaults); err != nil {
		return errors.New(err)
	}

	if opts.Search.Parallelism <= 0 {
		opts.Search.Parallelism = 1
	}

	return nil
}

// KconfigPath returns the top-level Kconfig file.
func (opts *KdiceOptions) KconfigPath() string {
	if filepath.IsAbs(opts.KconfigRoot) {
		return opts.KconfigRoot
	}

	return filepath.Join(opts.KernelSrc, opts.KconfigRoot)
}
