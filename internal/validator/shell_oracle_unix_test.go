//go:build unix

package validator_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/internal/validator"
	"github.com/kdice/kdice/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOracle(t *testing.T, failStage string, stages ...validator.Stage) *validator.ShellOracle {
	t.Helper()

	script, err := filepath.Abs("testdata/stage.sh")
	require.NoError(t, err)

	dir := t.TempDir()

	commands := make([]validator.StageCommand, 0, len(stages))
	for _, stage := range stages {
		commands = append(commands, validator.StageCommand{
			Stage:   stage,
			Command: []string{script},
			Env:     map[string]string{"FAIL_STAGE": failStage},
		})
	}

	oracle, err := validator.NewShellOracle(log.New(), validator.ShellOracleOptions{
		KernelSrc: dir,
		Arch:      "x86",
		WorkDir:   filepath.Join(dir, "work"),
		LogDir:    filepath.Join(dir, "logs"),
		Stages:    commands,
		Slots:     2,
	})
	require.NoError(t, err)

	return oracle
}

func TestShellOraclePasses(t *testing.T) {
	t.Parallel()

	oracle := newOracle(t, "", validator.StageBuild, validator.StageBoot, validator.StageTest)

	verdict, err := oracle.Validate(context.Background(), "CONFIG_GOOD=y\n")
	require.NoError(t, err)
	assert.True(t, verdict.Pass)
	assert.Equal(t, validator.StageTest, verdict.Stage)

	logText, err := os.ReadFile(verdict.LogRef)
	require.NoError(t, err)
	assert.Contains(t, string(logText), "stage test")

	config, err := os.ReadFile(filepath.Join(oracle.SlotDir(0), validator.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, "CONFIG_GOOD=y\n", string(config))
}

func TestShellOracleFailingStage(t *testing.T) {
	t.Parallel()

	oracle := newOracle(t, "boot", validator.StageBuild, validator.StageBoot, validator.StageTest)

	verdict, err := oracle.Validate(context.Background(), "CONFIG_GOOD=y\n")
	require.NoError(t, err)
	assert.False(t, verdict.Pass)
	assert.Equal(t, validator.StageBoot, verdict.Stage)
}

func TestShellOracleRejectsCandidate(t *testing.T) {
	t.Parallel()

	oracle := newOracle(t, "", validator.StageBuild)

	verdict, err := oracle.Validate(context.Background(), "CONFIG_BAD=y\n")
	require.NoError(t, err)
	assert.Equal(t, validator.Failed(validator.StageBuild).Stage, verdict.Stage)
	assert.False(t, verdict.Pass)
}

func TestShellOracleStageTimeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	oracle, err := validator.NewShellOracle(log.New(), validator.ShellOracleOptions{
		WorkDir: filepath.Join(dir, "work"),
		LogDir:  filepath.Join(dir, "logs"),
		Stages: []validator.StageCommand{
			{Stage: validator.StageBoot, Command: []string{"sleep", "30"}, Timeout: 200 * time.Millisecond},
		},
		GracePeriod: time.Second,
	})
	require.NoError(t, err)

	verdict, err := oracle.Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, verdict.Pass)
	assert.Equal(t, validator.StageBoot, verdict.Stage)
}

func TestShellOracleValidationTimeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	oracle, err := validator.NewShellOracle(log.New(), validator.ShellOracleOptions{
		WorkDir: filepath.Join(dir, "work"),
		LogDir:  filepath.Join(dir, "logs"),
		Stages: []validator.StageCommand{
			{Stage: validator.StageBuild, Command: []string{"true"}},
			{Stage: validator.StageBoot, Command: []string{"sleep", "30"}},
		},
		GracePeriod: time.Second,
		Timeout:     300 * time.Millisecond,
	})
	require.NoError(t, err)

	verdict, err := oracle.Validate(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, verdict.Pass)
	assert.Equal(t, validator.StageBoot, verdict.Stage)
	assert.NotEmpty(t, verdict.LogRef)
}

func TestShellOracleCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	oracle, err := validator.NewShellOracle(log.New(), validator.ShellOracleOptions{
		WorkDir: filepath.Join(dir, "work"),
		LogDir:  filepath.Join(dir, "logs"),
		Stages: []validator.StageCommand{
			{Stage: validator.StageBuild, Command: []string{"sleep", "30"}},
		},
		GracePeriod: time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	verdict, err := oracle.Validate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, validator.StageCancelled, verdict.Stage)
}

func TestShellOracleUnavailable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	oracle, err := validator.NewShellOracle(log.New(), validator.ShellOracleOptions{
		WorkDir: filepath.Join(dir, "work"),
		LogDir:  filepath.Join(dir, "logs"),
		Stages: []validator.StageCommand{
			{Stage: validator.StageBuild, Command: []string{"kdice-missing-build-tool"}},
		},
	})
	require.NoError(t, err)

	_, err = oracle.Validate(context.Background(), "")

	var unavailable validator.OracleUnavailableError
	require.True(t, errors.As(err, &unavailable))
}

func TestNewShellOracleRequiresStages(t *testing.T) {
	t.Parallel()

	_, err := validator.NewShellOracle(log.New(), validator.ShellOracleOptions{WorkDir: t.TempDir()})
	require.Error(t, err)
}
