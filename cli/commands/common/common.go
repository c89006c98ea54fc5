// Package common loads the inputs shared by the kdice commands.
package common

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-version"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/internal/kernel"
	"github.com/kdice/kdice/internal/validator"
	"github.com/kdice/kdice/internal/workload"
	"github.com/kdice/kdice/options"
)

// LoadWorkload reads the workload descriptor and completes the options with its kernel and
// search settings. Without --workload, kdice.hcl in the working directory is used when it
// exists; required makes its absence an error.
func LoadWorkload(opts *options.KdiceOptions, required bool) (*workload.Descriptor, error) {
	if opts.WorkloadPath == "" {
		if !workload.Exists(options.DefaultWorkloadFile) {
			if required {
				return nil, errors.New(MissingWorkloadError{})
			}

			return nil, opts.MergeSearch(workload.SearchConfig{})
		}

		opts.WorkloadPath = options.DefaultWorkloadFile
	}

	if err := opts.ExpandPaths(); err != nil {
		return nil, err
	}

	parser := workload.NewParser(workload.WithLogger(opts.Logger), workload.WithDiagnosticsWriter(opts.ErrWriter))

	desc, err := workload.Load(parser, opts.WorkloadPath, workload.Variables{
		KernelSrc: opts.KernelSrc,
		Arch:      opts.Arch,
		StateDir:  opts.StateDir,
	})
	if err != nil {
		return nil, err
	}

	opts.KernelSrc = desc.Kernel.Source
	opts.Arch = desc.Kernel.Arch

	if err := opts.MergeSearch(desc.Search); err != nil {
		return nil, err
	}

	return desc, nil
}

// LoadGraph parses the Kconfig tree of the kernel source.
func LoadGraph(opts *options.KdiceOptions) (*kconfig.Graph, *version.Version, error) {
	if opts.KernelSrc == "" {
		return nil, nil, errors.New(MissingKernelSrcError{})
	}

	if err := opts.ExpandPaths(); err != nil {
		return nil, nil, err
	}

	ver, err := kernel.Version(opts.KernelSrc)
	if err != nil {
		opts.Logger.Debugf("Kernel version unknown: %v", err)
	}

	root := opts.KconfigRoot
	if filepath.IsAbs(root) {
		if root, err = filepath.Rel(opts.KernelSrc, root); err != nil {
			return nil, nil, errors.New(err)
		}
	}

	g, err := kconfig.Load(opts.Logger, kconfig.LoadOptions{
		FS:   os.DirFS(opts.KernelSrc),
		Env:  kernel.Env(opts.KernelSrc, opts.Arch, ver),
		Root: filepath.ToSlash(root),
	})
	if err != nil {
		return nil, nil, err
	}

	opts.Logger.Debugf("Loaded %d options from %s", g.Len(), opts.KconfigPath())

	return g, ver, nil
}

// LoadConfig reads a .config file against the graph.
func LoadConfig(g *kconfig.Graph, path string) (*kconfig.Assignment, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err)
	}

	return kconfig.ParseDotConfig(g, path, src)
}

// NewOracle returns the shell oracle of the descriptor's stages.
func NewOracle(opts *options.KdiceOptions, desc *workload.Descriptor, workDir, logDir string, slots int) (*validator.ShellOracle, error) {
	return validator.NewShellOracle(opts.Logger, validator.ShellOracleOptions{
		KernelSrc: desc.Kernel.Source,
		Arch:      desc.Kernel.Arch,
		WorkDir:   workDir,
		LogDir:    logDir,
		Stages:    desc.Stages,
		Slots:     slots,
		Timeout:   opts.Search.ValidateTimeout,
	})
}
