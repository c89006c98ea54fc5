package kconfig_test

import (
	"testing"

	"github.com/kdice/kdice/internal/kconfig"
	"github.com/kdice/kdice/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exprKconfig = `
config A
	bool "A"
config B
	tristate "B"
config C
	bool "C"
config N
	int "N"
config S
	string "S"
`

func TestEvalExpressions(t *testing.T) {
	t.Parallel()

	g, err := kconfig.Parse(log.New(), "Kconfig", []byte(exprKconfig))
	require.NoError(t, err)

	a := kconfig.NewAssignment(g, map[string]string{"A": "y", "B": "m", "N": "0x20", "S": `"abc"`})

	testCases := []struct {
		expr     string
		expected kconfig.Tristate
	}{
		{expr: "A", expected: kconfig.Yes},
		{expr: "B", expected: kconfig.Mod},
		{expr: "C", expected: kconfig.No},
		{expr: "A && B", expected: kconfig.Mod},
		{expr: "C || B", expected: kconfig.Mod},
		{expr: "!B", expected: kconfig.Mod},
		{expr: "!C && A", expected: kconfig.Yes},
		{expr: "B = m", expected: kconfig.Yes},
		{expr: "C != n", expected: kconfig.No},
		{expr: "N >= 32", expected: kconfig.Yes},
		{expr: "N < 16", expected: kconfig.No},
		{expr: "UNDEFINED || (A && !C)", expected: kconfig.Yes},
		{expr: "y", expected: kconfig.Yes},
		{expr: "m && A", expected: kconfig.Mod},
		{expr: `S = "abc"`, expected: kconfig.Yes},
		{expr: `S != "abc"`, expected: kconfig.No},
		{expr: `S = "abd"`, expected: kconfig.No},
		{expr: "N = 0x20", expected: kconfig.Yes},
		{expr: "$(cc-option,-fstack-protector)", expected: kconfig.Yes},
		{expr: `A && $(success,test "$(cc-name)" = GCC)`, expected: kconfig.Yes},
		{expr: "C || $(as-instr,movbe (%eax),%eax)", expected: kconfig.Yes},
		{expr: `"abc"`, expected: kconfig.No},
	}

	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			t.Parallel()

			e, err := kconfig.ParseExpr(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, kconfig.Eval(g, a, e))
		})
	}
}

func TestParseExprErrors(t *testing.T) {
	t.Parallel()

	for _, str := range []string{"A &&", "(A || B", "A B", "&& A", `"unterminated`} {
		_, err := kconfig.ParseExpr(str)
		assert.Error(t, err, str)
	}
}

func TestReferencesTracksNegation(t *testing.T) {
	t.Parallel()

	e, err := kconfig.ParseExpr("A && !(B || !C) && D = y")
	require.NoError(t, err)

	refs := make(map[string]bool)
	kconfig.References(e, func(name string, positive bool) {
		refs[name] = positive
	})

	assert.Equal(t, map[string]bool{"A": true, "B": false, "C": true, "D": true, "y": true}, refs)
}
