package logger

import (
	"testing"

	"github.com/GlebRadaev/walletledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name           string
		config         *config.Config
		expectedError  bool
		expectedLogLvl zapcore.Level
		disabledLvl    zapcore.Level
	}{
		{
			name:           "Default info level",
			config:         &config.Config{LogLvl: "info", Currency: "USD"},
			expectedLogLvl: zapcore.InfoLevel,
			disabledLvl:    zapcore.DebugLevel,
		},
		{
			name:           "Upper-case level from env",
			config:         &config.Config{LogLvl: "WARN"},
			expectedLogLvl: zapcore.WarnLevel,
			disabledLvl:    zapcore.InfoLevel,
		},
		{
			name:           "Error level hides warnings",
			config:         &config.Config{LogLvl: "error"},
			expectedLogLvl: zapcore.ErrorLevel,
			disabledLvl:    zapcore.WarnLevel,
		},
		{
			name:           "Debug level",
			config:         &config.Config{LogLvl: " debug "},
			expectedLogLvl: zapcore.DebugLevel,
			disabledLvl:    zapcore.DebugLevel - 1,
		},
		{
			name:          "Unsupported level",
			config:        &config.Config{LogLvl: "trace"},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.config)

			if tt.expectedError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, zap.L().Core().Enabled(tt.expectedLogLvl))
			assert.False(t, zap.L().Core().Enabled(tt.disabledLvl))
		})
	}
}

func TestNewConfigInitialFields(t *testing.T) {
	c, err := newConfig(&config.Config{LogLvl: "info", Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "console", c.Encoding)
	assert.Equal(t, map[string]interface{}{"service": "walletledger", "currency": "EUR"}, c.InitialFields)

	c, err = newConfig(&config.Config{LogLvl: "info"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"service": "walletledger"}, c.InitialFields)
}
