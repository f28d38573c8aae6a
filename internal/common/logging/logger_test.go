package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/common/config"
)

func TestNew(t *testing.T) {
	t.Run("applies the configured level", func(t *testing.T) {
		logger, err := New(&config.Config{Environment: "dev", LogLevel: "warn"})

		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zap.InfoLevel))
		assert.True(t, logger.Core().Enabled(zap.WarnLevel))
	})

	t.Run("production logger", func(t *testing.T) {
		logger, err := New(&config.Config{Environment: "prod", LogLevel: "debug"})

		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	})

	t.Run("rejects unknown levels", func(t *testing.T) {
		_, err := New(&config.Config{Environment: "dev", LogLevel: "loud"})

		assert.Error(t, err)
	})
}
