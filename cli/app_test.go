package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kdice/kdice/cli"
	"github.com/kdice/kdice/options"
	"github.com/kdice/kdice/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kconfigSrc = `
config A
	bool "A"

config B
	bool "B"
	depends on A
`

func TestAppVersion(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer

	opts := options.NewKdiceOptionsWithWriters(&stdout, &bytes.Buffer{})

	err := cli.NewApp(opts).RunContext(context.Background(), []string{"kdice", "--version"})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), cli.Version)
}

func TestAppInvalidLogLevel(t *testing.T) {
	t.Parallel()

	opts := options.NewKdiceOptionsWithWriters(&bytes.Buffer{}, &bytes.Buffer{})

	err := cli.NewApp(opts).RunContext(context.Background(), []string{"kdice", "--log-level", "loud", "groups"})
	require.Error(t, err)
}

func TestAppDiffCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Kconfig"), []byte(kconfigSrc), 0o644))

	oldConfig := filepath.Join(dir, "old.config")
	newConfig := filepath.Join(dir, "new.config")

	require.NoError(t, os.WriteFile(oldConfig, []byte("CONFIG_A=y\nCONFIG_B=y\n"), 0o644))
	require.NoError(t, os.WriteFile(newConfig, []byte("CONFIG_A=y\n# CONFIG_B is not set\n"), 0o644))

	var stdout bytes.Buffer

	opts := options.NewKdiceOptionsWithWriters(&stdout, &bytes.Buffer{})

	err := cli.NewApp(opts).RunContext(context.Background(), []string{
		"kdice", "--log-level", "debug", "diff", "--kernel-src", dir, oldConfig, newConfig,
	})
	require.NoError(t, err)
	assert.Equal(t, "-B\n", stdout.String())
	assert.Equal(t, log.DebugLevel, opts.Logger.Level())
}
