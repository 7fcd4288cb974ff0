package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/handlers/slogpretty"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	ctx := context.Background()

	local := logger.Setup(logger.EnvLocal)
	_, pretty := local.Handler().(*slogpretty.PrettyHandler)
	require.True(t, pretty)
	require.True(t, local.Enabled(ctx, slog.LevelDebug))

	require.True(t, logger.Setup(logger.EnvDev).Enabled(ctx, slog.LevelDebug))

	prod := logger.Setup(logger.EnvProd)
	require.False(t, prod.Enabled(ctx, slog.LevelDebug))
	require.True(t, prod.Enabled(ctx, slog.LevelInfo))

	require.NotNil(t, logger.Setup("staging"))
}
