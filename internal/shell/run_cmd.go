// Package shell runs the external commands of the validation stages.
package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/telemetry"
	"github.com/kdice/kdice/pkg/log"
)

// DefaultGracePeriod is how long a cancelled command gets to exit after the interrupt signal
// before it is killed.
const DefaultGracePeriod = 10 * time.Second

// RunOptions contains the configuration needed to run shell commands.
type RunOptions struct {
	Stdout io.Writer
	Stderr io.Writer
	// Env is added on top of the environment of the current process.
	Env        map[string]string
	WorkingDir string
	// GracePeriod overrides DefaultGracePeriod.
	GracePeriod time.Duration
}

// RunCommand runs the given command and waits for it. The command gets its own process group,
// cancelling the context interrupts the whole group and kills it after the grace period.
func RunCommand(ctx context.Context, l log.Logger, opts *RunOptions, command string, args ...string) error {
	return telemetry.TelemeterFromContext(ctx).Collect(ctx, "run_"+command, map[string]any{
		"command": command,
		"args":    strings.Join(args, " "),
		"dir":     opts.WorkingDir,
	}, func(ctx context.Context) error {
		l.Debugf("Running command: %s %s", command, strings.Join(args, " "))

		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Dir = opts.WorkingDir
		cmd.Env = mergeEnv(os.Environ(), opts.Env)
		cmd.Stdout = opts.Stdout
		cmd.Stderr = opts.Stderr

		cmd.WaitDelay = opts.GracePeriod
		if cmd.WaitDelay <= 0 {
			cmd.WaitDelay = DefaultGracePeriod
		}

		configureProcessGroup(cmd)

		if err := cmd.Start(); err != nil {
			return errors.New(ProcessExecutionError{
				Err:        err,
				Command:    command,
				Args:       args,
				WorkingDir: cmd.Dir,
			})
		}

		if err := cmd.Wait(); err != nil {
			return errors.New(ProcessExecutionError{
				Err:        err,
				Command:    command,
				Args:       args,
				WorkingDir: cmd.Dir,
				Started:    true,
			})
		}

		return nil
	})
}

// ProcessExecutionError is returned when a command could not be started or exited with an error.
type ProcessExecutionError struct {
	Err        error
	Command    string
	WorkingDir string
	Args       []string
	// Started is false when the command never ran, e.g. the executable is missing.
	Started bool
}

func (err ProcessExecutionError) Error() string {
	return fmt.Sprintf("Failed to execute \"%s %s\" in %s: %v",
		err.Command,
		strings.Join(err.Args, " "),
		err.WorkingDir,
		err.Err,
	)
}

func (err ProcessExecutionError) Unwrap() error {
	return err.Err
}

// ExitStatus returns the exit code of the command, -1 if it did not exit normally.
func (err ProcessExecutionError) ExitStatus() int {
	var exitErr *exec.ExitError
	if errors.As(err.Err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	env := make([]string, 0, len(base)+len(extra))

	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := extra[name]; !ok {
			env = append(env, kv)
		}
	}

	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		env = append(env, name+"="+extra[name])
	}

	return env
}
