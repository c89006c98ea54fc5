package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/kdice/kdice/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		str      string
		expected log.Level
		wantErr  bool
	}{
		{str: "error", expected: log.ErrorLevel},
		{str: "INFO", expected: log.InfoLevel},
		{str: "trace", expected: log.TraceLevel},
		{str: "verbose", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.str, func(t *testing.T) {
			t.Parallel()

			level, err := log.ParseLevel(tc.str)
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestTextFormatterOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := log.New(log.WithOutput(&buf), log.WithFormatter(log.NewTextFormatter(&buf)), log.WithLevel(log.DebugLevel))
	logger.WithField(log.FieldKeyRound, 2).Debugf("probing %s", "leaf:A")
	logger.Trace("hidden")

	out := buf.String()
	assert.Contains(t, out, "DEBU probing leaf:A round=2")
	assert.NotContains(t, out, "hidden")
}

func TestJSONFormatterOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := log.New(log.WithOutput(&buf), log.WithFormatter(log.NewJSONFormatter()))
	logger.WithField(log.FieldKeyGroup, "scc:B").Info("committed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "committed", entry["msg"])
	assert.Equal(t, "scc:B", entry["group"])
}

func TestCloneKeepsFieldsAndLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	parent := log.New(log.WithOutput(&buf), log.WithFormatter(log.NewTextFormatter(&buf)))
	child := parent.WithField(log.FieldKeySlot, 1).Clone()

	require.NoError(t, child.SetLevel("debug"))
	assert.Equal(t, log.InfoLevel, parent.Level())
	assert.Equal(t, log.DebugLevel, child.Level())

	child.Debug("from child")
	assert.Contains(t, buf.String(), "slot=1")
}

func TestLoggerFromContext(t *testing.T) {
	t.Parallel()

	logger := log.New()
	ctx := log.ContextWithLogger(context.Background(), logger)

	assert.Same(t, logger, log.LoggerFromContext(ctx))
	assert.Same(t, log.Default(), log.LoggerFromContext(context.Background()))
}
