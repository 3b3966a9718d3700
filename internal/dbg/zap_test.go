package dbg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		level   string
		enabled zapcore.Level
		wantErr bool
	}{
		{"console debug", FormatConsole, "debug", zapcore.DebugLevel, false},
		{"json warn", FormatJSON, "warn", zapcore.WarnLevel, false},
		{"unknown format", "xml", "info", zapcore.InfoLevel, true},
		{"unknown level", FormatJSON, "loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.format, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}
