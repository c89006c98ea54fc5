// Package flags provides the flags shared by the kdice commands.
package flags

import (
	"github.com/kdice/kdice/options"
	"github.com/urfave/cli/v2"
)

const (
	// Global flags.

	LogLevelFlagName          = "log-level"
	LogFormatFlagName         = "log-format"
	TelemetryExporterFlagName = "telemetry-exporter"

	// Input flags.

	KernelSrcFlagName       = "kernel-src"
	ArchFlagName            = "arch"
	KconfigFlagName         = "kconfig"
	BaselineFlagName        = "baseline"
	WorkloadFlagName        = "workload"
	StateDirFlagName        = "state-dir"
	FreshFlagName           = "fresh"
	MaxRoundsFlagName       = "max-rounds"
	TimeBudgetFlagName      = "time-budget"
	ValidateTimeoutFlagName = "validate-timeout"
	GroupSizeFlagName       = "max-group-size"
	ParallelismFlagName     = "parallelism"
)

var kdicePrefix = Prefix{KdicePrefix}

// NewGlobalFlags returns the flags accepted by every command.
func NewGlobalFlags(opts *options.KdiceOptions, logLevel *string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        LogLevelFlagName,
			EnvVars:     kdicePrefix.EnvVars(LogLevelFlagName),
			Destination: logLevel,
			Value:       opts.LogLevel.String(),
			Usage:       "Sets the logging level: error, warn, info, debug or trace.",
		},
		&cli.StringFlag{
			Name:        LogFormatFlagName,
			EnvVars:     kdicePrefix.EnvVars(LogFormatFlagName),
			Destination: &opts.LogFormat,
			Value:       opts.LogFormat,
			Usage:       "Sets the log format: text or json.",
		},
		&cli.StringFlag{
			Name:        TelemetryExporterFlagName,
			EnvVars:     kdicePrefix.EnvVars(TelemetryExporterFlagName),
			Destination: &opts.TelemetryExporter,
			Value:       opts.TelemetryExporter,
			Usage:       "Exports traces and metrics: none or console.",
		},
	}
}

// NewKernelFlags returns the flags locating the kernel tree and its Kconfig.
func NewKernelFlags(opts *options.KdiceOptions) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        KernelSrcFlagName,
			EnvVars:     kdicePrefix.EnvVars(KernelSrcFlagName),
			Destination: &opts.KernelSrc,
			Usage:       "Path to the kernel source tree, overrides the workload descriptor.",
		},
		&cli.StringFlag{
			Name:        ArchFlagName,
			EnvVars:     kdicePrefix.EnvVars(ArchFlagName),
			Destination: &opts.Arch,
			Usage:       "Kernel ARCH, defaults to the host architecture.",
		},
		&cli.StringFlag{
			Name:        KconfigFlagName,
			EnvVars:     kdicePrefix.EnvVars(KconfigFlagName),
			Destination: &opts.KconfigRoot,
			Value:       opts.KconfigRoot,
			Usage:       "Top-level Kconfig file, relative to the kernel source tree.",
		},
	}
}

// NewWorkloadFlags returns the flags of the workload descriptor and state directory.
func NewWorkloadFlags(opts *options.KdiceOptions) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        WorkloadFlagName,
			EnvVars:     kdicePrefix.EnvVars(WorkloadFlagName),
			Destination: &opts.WorkloadPath,
			Usage:       "Path to the workload descriptor.",
			DefaultText: options.DefaultWorkloadFile,
		},
		&cli.StringFlag{
			Name:        StateDirFlagName,
			EnvVars:     kdicePrefix.EnvVars(StateDirFlagName),
			Destination: &opts.StateDir,
			Value:       opts.StateDir,
			Usage:       "Directory holding the rounds, logs and build directories of a run.",
		},
	}
}

// NewSearchFlags returns the budget and tuning flags of the search.
func NewSearchFlags(opts *options.KdiceOptions) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        FreshFlagName,
			EnvVars:     kdicePrefix.EnvVars(FreshFlagName),
			Destination: &opts.Fresh,
			Usage:       "Discard the rounds of an earlier run in the state directory.",
		},
		&cli.IntFlag{
			Name:        MaxRoundsFlagName,
			EnvVars:     kdicePrefix.EnvVars(MaxRoundsFlagName),
			Destination: &opts.Search.MaxRounds,
			Usage:       "Stop after this many rounds, 0 means until convergence.",
		},
		&cli.DurationFlag{
			Name:        TimeBudgetFlagName,
			EnvVars:     kdicePrefix.EnvVars(TimeBudgetFlagName),
			Destination: &opts.Search.TimeBudget,
			Usage:       "Stop after this much time, 0 means no limit.",
		},
		&cli.IntFlag{
			Name:        GroupSizeFlagName,
			EnvVars:     kdicePrefix.EnvVars(GroupSizeFlagName),
			Destination: &opts.Search.MaxGroupSize,
			Usage:       "Skip SCC and menu groups with more options, 0 means no limit. Leaf and single groups are never skipped.",
		},
		NewValidateTimeoutFlag(opts),
		NewParallelismFlag(opts),
	}
}

// NewValidateTimeoutFlag returns the flag bounding a single validation.
func NewValidateTimeoutFlag(opts *options.KdiceOptions) cli.Flag {
	return &cli.DurationFlag{
		Name:        ValidateTimeoutFlagName,
		EnvVars:     kdicePrefix.EnvVars(ValidateTimeoutFlagName),
		Destination: &opts.Search.ValidateTimeout,
		Usage:       "Fail a validation that runs longer than this, 0 means only the stage timeouts apply.",
	}
}

// NewParallelismFlag returns the flag bounding the number of concurrent oracle calls.
func NewParallelismFlag(opts *options.KdiceOptions) cli.Flag {
	return &cli.IntFlag{
		Name:        ParallelismFlagName,
		EnvVars:     kdicePrefix.EnvVars(ParallelismFlagName),
		Destination: &opts.Search.Parallelism,
		Usage:       "Number of validations that may run at the same time.",
	}
}

// NewBaselineFlag returns the flag of the input .config.
func NewBaselineFlag(opts *options.KdiceOptions, usage string, required bool) cli.Flag {
	return &cli.StringFlag{
		Name:        BaselineFlagName,
		Aliases:     []string{"config"},
		EnvVars:     kdicePrefix.EnvVars(BaselineFlagName),
		Destination: &opts.BaselinePath,
		Usage:       usage,
		Required:    required,
	}
}
