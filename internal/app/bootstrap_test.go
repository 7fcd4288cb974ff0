package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/config"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/lib/logger/handlers/slogdiscard"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func syntheticConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:                "local",
		Venue:              config.VenueSynthetic,
		SettlementDecimals: -1,
		LookbackDays:       21,
		WeeklyRecords:      2,
		OutputPath:         filepath.Join(t.TempDir(), "synthetic_volume_data.json"),
		MaxPages:           100,
		FetchMaxRetries:    1,
		FetchRetryBackoff:  time.Millisecond,
		HTTPTimeout:        time.Second,
	}
}

func TestNewAppSyntheticRun(t *testing.T) {
	ctx := context.Background()
	cfg := syntheticConfig(t)

	a, err := app.NewApp(ctx, slogdiscard.NewDiscardLogger(), cfg)
	require.NoError(t, err)
	defer a.Cleanup()

	require.Nil(t, a.Snapshots)
	require.Nil(t, a.Cache)

	report, err := a.Runner.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, "synthetic", report.Source)
	require.Equal(t, "synthetic", report.SourceTag)
	require.False(t, report.Partial)
	require.LessOrEqual(t, len(report.DailyData), 21)
	require.Len(t, report.WeeklyData, 2)
	require.NotNil(t, report.Diagnostics.DoubleCountRatio)
	require.Equal(t, 2.0, *report.Diagnostics.DoubleCountRatio)

	saved, err := a.Store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, report.RunID, saved.RunID)
}

func TestNewAppWithRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := syntheticConfig(t)
	cfg.RedisAddr = mr.Addr()

	a, err := app.NewApp(ctx, slogdiscard.NewDiscardLogger(), cfg)
	require.NoError(t, err)
	defer a.Cleanup()
	require.NotNil(t, a.Cache)

	_, err = a.Runner.Run(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists("volume:report:synthetic"))

	server, err := app.NewServerApp(ctx, slogdiscard.NewDiscardLogger(), cfg)
	require.NoError(t, err)
	defer server.Cleanup()

	got, err := server.Reader.LatestReport(ctx)
	require.NoError(t, err)
	require.Equal(t, "synthetic", got.Source)
}

func TestNewAppUnreachableRedis(t *testing.T) {
	cfg := syntheticConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"

	a, err := app.NewApp(context.Background(), slogdiscard.NewDiscardLogger(), cfg)
	require.NoError(t, err)
	defer a.Cleanup()
	require.Nil(t, a.Cache)
}

func TestNewAppUnknownVenue(t *testing.T) {
	cfg := syntheticConfig(t)
	cfg.Venue = "nasdaq"

	_, err := app.NewApp(context.Background(), slogdiscard.NewDiscardLogger(), cfg)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
