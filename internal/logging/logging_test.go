package logging_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tayloree/shopcli/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"", zapcore.WarnLevel},
		{"debug", zapcore.DebugLevel},
		{" INFO ", zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.input)
		require.NoError(t, err, "ParseLevel(%q)", tt.input)
		assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.input)
	}

	_, err := logging.ParseLevel("chatty")
	assert.Error(t, err)
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(zapcore.InfoLevel, &buf)

	logger.Debug("hidden")
	logger.Info("shown", zap.String("kind", "brand"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, `"kind": "brand"`)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, logging.OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, logging.OrNop(l))
}
