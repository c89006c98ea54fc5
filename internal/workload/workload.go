// Package workload reads the workload descriptor, the HCL file that tells kdice how to build,
// boot and test a candidate kernel.
//
//	kernel {
//	  source = "~/src/linux"
//	  arch   = "x86_64"
//	}
//
//	build {
//	  command = "make -C ${kernel_src} O=$KDICE_BUILD_DIR olddefconfig bzImage"
//	  timeout = "1h"
//	}
//
//	boot {
//	  command = ["./boot.sh", "$KDICE_BUILD_DIR/arch/x86/boot/bzImage"]
//	  timeout = "10m"
//	}
//
//	search {
//	  max_rounds  = 20
//	  parallelism = 2
//	}
//
// The kernel block is evaluated first; the other blocks may reference kernel_src, arch and
// state_dir. $KDICE_* references are expanded for every validation.
package workload

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/shlex"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/validator"
	"github.com/mitchellh/go-homedir"
	"github.com/zclconf/go-cty/cty"
)

// Default stage timeouts.
const (
	DefaultBuildTimeout = time.Hour
	DefaultBootTimeout  = 10 * time.Minute
	DefaultTestTimeout  = 30 * time.Minute
)

// KernelConfig is the kernel block.
type KernelConfig struct {
	Source string `hcl:"source,optional"`
	Arch   string `hcl:"arch,optional"`
}

// StageConfig is a build, boot or test block.
type StageConfig struct {
	Env     map[string]string `hcl:"env,optional"`
	Timeout string            `hcl:"timeout,optional"`
	Command cty.Value         `hcl:"command"`
}

// SearchConfig is the search block, defaults for the command line flags.
type SearchConfig struct {
	TimeBudget string `hcl:"time_budget,optional"`
	// ValidateTimeout bounds one validation, all stages included.
	ValidateTimeout string `hcl:"validate_timeout,optional"`
	MaxRounds       int    `hcl:"max_rounds,optional"`
	MaxGroupSize    int    `hcl:"max_group_size,optional"`
	Parallelism     int    `hcl:"parallelism,optional"`
}

type kernelFile struct {
	Kernel *KernelConfig `hcl:"kernel,block"`
	Remain hcl.Body      `hcl:",remain"`
}

type stagesFile struct {
	Build  *StageConfig  `hcl:"build,block"`
	Boot   *StageConfig  `hcl:"boot,block"`
	Test   *StageConfig  `hcl:"test,block"`
	Search *SearchConfig `hcl:"search,block"`
}

// Descriptor is a decoded workload descriptor.
type Descriptor struct {
	Kernel KernelConfig
	Search SearchConfig
	Path   string
	Stages []validator.StageCommand
}

// Variables are the values the descriptor expressions can reference besides the kernel block.
type Variables struct {
	// KernelSrc overrides the kernel block's source when set.
	KernelSrc string
	// Arch overrides the kernel block's arch when set.
	Arch     string
	StateDir string
}

// Load reads and decodes the descriptor at path.
func Load(parser *Parser, path string, vars Variables) (*Descriptor, error) {
	file, err := parser.ParseFromFile(path)
	if err != nil {
		return nil, err
	}

	return Decode(parser, file, path, vars)
}

// Decode decodes a parsed descriptor.
func Decode(parser *Parser, file *hcl.File, path string, vars Variables) (*Descriptor, error) {
	baseVars := map[string]cty.Value{
		"state_dir": cty.StringVal(vars.StateDir),
	}

	var kf kernelFile
	if diags := gohcl.DecodeBody(file.Body, &hcl.EvalContext{Variables: baseVars}, &kf); diags.HasErrors() {
		return nil, parser.handleDiagnostics(diags)
	}

	desc := &Descriptor{Path: path}

	if kf.Kernel != nil {
		desc.Kernel = *kf.Kernel
	}

	if vars.KernelSrc != "" {
		desc.Kernel.Source = vars.KernelSrc
	}

	if vars.Arch != "" {
		desc.Kernel.Arch = vars.Arch
	}

	if desc.Kernel.Source != "" {
		src, err := ExpandPath(desc.Kernel.Source, filepath.Dir(path))
		if err != nil {
			return nil, err
		}

		desc.Kernel.Source = src
	}

	evalCtx := &hcl.EvalContext{Variables: map[string]cty.Value{
		"state_dir":  baseVars["state_dir"],
		"kernel_src": cty.StringVal(desc.Kernel.Source),
		"arch":       cty.StringVal(desc.Kernel.Arch),
	}}

	var sf stagesFile
	if diags := gohcl.DecodeBody(kf.Remain, evalCtx, &sf); diags.HasErrors() {
		return nil, parser.handleDiagnostics(diags)
	}

	if sf.Build == nil {
		return nil, errors.New(MissingBlockError{File: path, Block: "build"})
	}

	if sf.Search != nil {
		desc.Search = *sf.Search
	}

	stages := []struct {
		config  *StageConfig
		stage   validator.Stage
		timeout time.Duration
	}{
		{sf.Build, validator.StageBuild, DefaultBuildTimeout},
		{sf.Boot, validator.StageBoot, DefaultBootTimeout},
		{sf.Test, validator.StageTest, DefaultTestTimeout},
	}

	for _, stage := range stages {
		if stage.config == nil {
			continue
		}

		cmd, err := stageCommand(stage.stage, stage.config, stage.timeout)
		if err != nil {
			return nil, err
		}

		desc.Stages = append(desc.Stages, cmd)
	}

	return desc, nil
}

func stageCommand(stage validator.Stage, config *StageConfig, defaultTimeout time.Duration) (validator.StageCommand, error) {
	cmd := validator.StageCommand{Stage: stage, Env: config.Env, Timeout: defaultTimeout}

	if config.Timeout != "" {
		timeout, err := time.ParseDuration(config.Timeout)
		if err != nil {
			return cmd, errors.New(InvalidCommandError{Stage: string(stage), Reason: err.Error()})
		}

		cmd.Timeout = timeout
	}

	args, err := commandArgs(config.Command)
	if err != nil {
		return cmd, errors.New(InvalidCommandError{Stage: string(stage), Reason: err.Error()})
	}

	if len(args) == 0 {
		return cmd, errors.New(InvalidCommandError{Stage: string(stage), Reason: "command is empty"})
	}

	cmd.Command = args

	return cmd, nil
}

// commandArgs accepts a string, split like a shell would, or a list of strings.
func commandArgs(val cty.Value) ([]string, error) {
	if val.IsNull() || !val.IsWhollyKnown() {
		return nil, errors.New("command must be set")
	}

	ty := val.Type()

	switch {
	case ty == cty.String:
		return shlex.Split(val.AsString())
	case ty.IsListType() || ty.IsTupleType():
		var args []string

		for it := val.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			if elem.IsNull() || elem.Type() != cty.String {
				return nil, errors.New("every command argument must be a string")
			}

			args = append(args, elem.AsString())
		}

		return args, nil
	}

	return nil, errors.Errorf("command must be a string or a list of strings, not %s", ty.FriendlyName())
}

// ExpandPath expands ~ and makes a relative path absolute against base.
func ExpandPath(path, base string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.New(err)
	}

	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(base, expanded)
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.New(err)
	}

	return abs, nil
}

// Exists reports whether the descriptor file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
