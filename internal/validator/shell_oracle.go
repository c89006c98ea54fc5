package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/shell"
	"github.com/kdice/kdice/internal/telemetry"
	"github.com/kdice/kdice/pkg/log"
)

const (
	// ConfigFileName is the name of the candidate config written into a slot build directory.
	ConfigFileName = ".config"

	EnvConfig    = "KDICE_CONFIG"
	EnvBuildDir  = "KDICE_BUILD_DIR"
	EnvKernelSrc = "KDICE_KERNEL_SRC"
	EnvArch      = "KDICE_ARCH"
	EnvSlot      = "KDICE_SLOT"
	EnvProbe     = "KDICE_PROBE"
	EnvStage     = "KDICE_STAGE"
	EnvLogDir    = "KDICE_LOG_DIR"

	logFilePerm = 0o644
	dirPerm     = 0o755
)

// StageCommand is one step of the oracle.
type StageCommand struct {
	Env     map[string]string
	Stage   Stage
	Command []string
	// Timeout of 0 means no limit besides the caller's context.
	Timeout time.Duration
}

// ShellOracleOptions configures a ShellOracle.
type ShellOracleOptions struct {
	KernelSrc string
	Arch      string
	// WorkDir holds one build directory per slot.
	WorkDir string
	LogDir  string
	Stages  []StageCommand
	// Slots is the number of validations that may run at the same time.
	Slots int
	// GracePeriod is how long an interrupted stage gets before it is killed.
	GracePeriod time.Duration
	// Timeout bounds one validation with all its stages, 0 means no limit. A validation that
	// runs out of time fails at the stage it was in.
	Timeout time.Duration
}

// ShellOracle validates a configuration by running external commands. Every stage command
// runs in a slot build directory that contains the candidate as .config; a zero exit status
// passes the stage.
type ShellOracle struct {
	logger log.Logger
	slots  chan int
	opts   ShellOracleOptions
}

// NewShellOracle creates the slot and log directories.
func NewShellOracle(l log.Logger, opts ShellOracleOptions) (*ShellOracle, error) {
	if len(opts.Stages) == 0 {
		return nil, errors.New(OracleUnavailableError{Reason: "no stage commands configured"})
	}

	for _, stage := range opts.Stages {
		if len(stage.Command) == 0 {
			return nil, errors.New(OracleUnavailableError{Reason: fmt.Sprintf("empty %s command", stage.Stage)})
		}
	}

	if opts.Slots <= 0 {
		opts.Slots = 1
	}

	oracle := &ShellOracle{
		logger: l,
		opts:   opts,
		slots:  make(chan int, opts.Slots),
	}

	if err := os.MkdirAll(opts.LogDir, dirPerm); err != nil {
		return nil, errors.New(err)
	}

	for slot := range opts.Slots {
		if err := os.MkdirAll(oracle.SlotDir(slot), dirPerm); err != nil {
			return nil, errors.New(err)
		}

		oracle.slots <- slot
	}

	return oracle, nil
}

// SlotDir returns the build directory of the given slot.
func (oracle *ShellOracle) SlotDir(slot int) string {
	return filepath.Join(oracle.opts.WorkDir, fmt.Sprintf("slot-%d", slot))
}

// Validate runs every stage in order until one fails.
func (oracle *ShellOracle) Validate(ctx context.Context, configText string) (Verdict, error) {
	var slot int

	select {
	case slot = <-oracle.slots:
	case <-ctx.Done():
		return Cancelled(), nil
	}

	defer func() { oracle.slots <- slot }()

	probe := uuid.NewString()
	logger := oracle.logger.WithFields(log.Fields{
		log.FieldKeyProbe: probe[:8],
		log.FieldKeySlot:  slot,
	})

	started := time.Now()

	var verdict Verdict

	err := telemetry.TelemeterFromContext(ctx).Collect(ctx, "validate", map[string]any{
		"probe": probe,
		"slot":  slot,
	}, func(ctx context.Context) error {
		var err error

		verdict, err = oracle.probe(ctx, logger, slot, probe, configText)

		return err
	})

	verdict.Duration = time.Since(started)

	if err != nil {
		return verdict, err
	}

	telemetry.TelemeterFromContext(ctx).Count(ctx, "verdict", 1, map[string]any{
		"pass":  verdict.Pass,
		"stage": string(verdict.Stage),
	})

	logger.Debugf("Verdict %s in %s", verdict, verdict.Duration.Round(time.Millisecond))

	return verdict, nil
}

func (oracle *ShellOracle) probe(parent context.Context, l log.Logger, slot int, probe, configText string) (Verdict, error) {
	ctx := parent

	if oracle.opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(parent, oracle.opts.Timeout)
		defer cancel()
	}

	buildDir := oracle.SlotDir(slot)
	configPath := filepath.Join(buildDir, ConfigFileName)

	if err := os.WriteFile(configPath, []byte(configText), logFilePerm); err != nil {
		return Verdict{}, errors.New(OracleUnavailableError{Reason: "cannot write candidate config", Err: err})
	}

	env := map[string]string{
		EnvConfig:    configPath,
		EnvBuildDir:  buildDir,
		EnvKernelSrc: oracle.opts.KernelSrc,
		EnvArch:      oracle.opts.Arch,
		EnvSlot:      strconv.Itoa(slot),
		EnvProbe:     probe,
		EnvLogDir:    oracle.opts.LogDir,
	}

	var verdict Verdict

	for _, stage := range oracle.opts.Stages {
		logRef := filepath.Join(oracle.opts.LogDir, fmt.Sprintf("%s-%s.log", probe, stage.Stage))

		ok, err := oracle.runStage(ctx, l.WithField(log.FieldKeyStage, stage.Stage), stage, env, buildDir, logRef)
		if err != nil {
			return Verdict{}, err
		}

		if parent.Err() != nil {
			verdict = Cancelled()
			verdict.LogRef = logRef

			return verdict, nil
		}

		if ctx.Err() != nil {
			l.Debugf("Validation timed out after %s in the %s stage", oracle.opts.Timeout, stage.Stage)

			return Verdict{Stage: stage.Stage, LogRef: logRef}, nil
		}

		verdict = Verdict{Stage: stage.Stage, LogRef: logRef, Pass: ok}
		if !ok {
			return verdict, nil
		}
	}

	return verdict, nil
}

// runStage reports whether the stage passed. An error means the command could not be started.
func (oracle *ShellOracle) runStage(ctx context.Context, l log.Logger, stage StageCommand, env map[string]string, buildDir, logRef string) (bool, error) {
	if stage.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}

	logFile, err := os.OpenFile(logRef, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, logFilePerm)
	if err != nil {
		return false, errors.New(OracleUnavailableError{Reason: "cannot create stage log", Err: err})
	}
	defer logFile.Close() //nolint:errcheck

	stageEnv := make(map[string]string, len(env)+len(stage.Env)+1)
	for key, val := range env {
		stageEnv[key] = val
	}

	stageEnv[EnvStage] = string(stage.Stage)

	for key, val := range stage.Env {
		stageEnv[key] = expand(val, stageEnv)
	}

	args := make([]string, len(stage.Command))
	for i, arg := range stage.Command {
		args[i] = expand(arg, stageEnv)
	}

	err = shell.RunCommand(ctx, l, &shell.RunOptions{
		Stdout:      logFile,
		Stderr:      logFile,
		Env:         stageEnv,
		WorkingDir:  buildDir,
		GracePeriod: oracle.opts.GracePeriod,
	}, args[0], args[1:]...)
	if err == nil {
		return true, nil
	}

	var processErr shell.ProcessExecutionError
	if errors.As(err, &processErr) && !processErr.Started {
		return false, errors.New(OracleUnavailableError{Reason: fmt.Sprintf("cannot run %s command", stage.Stage), Err: err})
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		l.Debugf("Stage timed out after %s", stage.Timeout)
	} else {
		l.Tracef("Stage failed: %v", err)
	}

	return false, nil
}

// expand substitutes $VAR and ${VAR} from env, falling back to the process environment.
func expand(str string, env map[string]string) string {
	return os.Expand(str, func(name string) string {
		if val, ok := env[name]; ok {
			return val
		}

		return os.Getenv(name)
	})
}
