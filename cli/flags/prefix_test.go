package flags_test

import (
	"testing"

	"github.com/kdice/kdice/cli/flags"
	"github.com/stretchr/testify/assert"
)

func TestPrefixEnvVars(t *testing.T) {
	t.Parallel()

	prefix := flags.Prefix{flags.KdicePrefix}

	assert.Equal(t, "KDICE_VALIDATE_TIMEOUT", prefix.EnvVar(flags.ValidateTimeoutFlagName))
	assert.Equal(t, []string{"KDICE_MAX_ROUNDS", "KDICE_STATE_DIR"},
		prefix.EnvVars(flags.MaxRoundsFlagName, flags.StateDirFlagName))
	assert.Equal(t, flags.Prefix{flags.KdicePrefix}, prefix)
}
