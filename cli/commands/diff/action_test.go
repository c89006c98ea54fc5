package diff_test

import (
	"bytes"
	"testing"

	"github.com/kdice/kdice/cli/commands/diff"
	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/options"
	"github.com/kdice/kdice/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	g, err := kconfig.Parse(log.New(), "Kconfig", []byte(`
config A
	bool "a"
config B
	bool "b"
config C
	bool "c"
`))
	require.NoError(t, err)

	var stdout bytes.Buffer

	opts := options.NewKdiceOptionsWithWriters(&stdout, &bytes.Buffer{})

	err = diff.Write(opts, g,
		kconfig.NewAssignment(g, map[string]string{"A": "y", "B": "m"}),
		kconfig.NewAssignment(g, map[string]string{"B": "y", "C": "y"}))
	require.NoError(t, err)

	assert.Equal(t, "-A\n+C\n", stdout.String())
}
