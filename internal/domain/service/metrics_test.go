package service_test

import (
	"testing"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDeriveMetrics(t *testing.T) {
	now := time.Date(2025, 1, 21, 6, 0, 0, 0, time.UTC)
	daily := []model.DailyBucket{
		{Date: day(2025, 1, 19), Volume: decimal.NewFromInt(1_000_000)},
		{Date: day(2025, 1, 20), Volume: decimal.NewFromInt(2_500_000)},
	}
	weekly := service.BucketWeekly(daily)
	snapshot := &model.MarketSnapshot{
		Volume24H:     decimal.NewFromInt(2_600_000),
		OpenInterest:  decimal.NewFromInt(40_000_000),
		Liquidity:     decimal.NewFromInt(3_000_000),
		ActiveMarkets: 412,
	}
	fee := decimal.RequireFromString("0.01")

	m := service.DeriveMetrics(daily, weekly, snapshot, &fee, now)

	require.Equal(t, "2500000", m.Volume24H.String())
	require.Equal(t, "2500000", m.LatestWeekVolume.String())
	require.Equal(t, "40000000", m.OpenInterest.String())
	require.Equal(t, 412, m.ActiveMarkets)
	require.Equal(t, model.SourceReconciled, m.SourceOfTruth)
	require.Equal(t, now, m.ComputedAt)

	require.NotNil(t, m.Revenue)
	require.Equal(t, "25000", m.Revenue.Daily.String())
	require.Equal(t, "25000", m.Revenue.Weekly.String())
	require.Equal(t, "107500", m.Revenue.Monthly.String())
	require.Equal(t, "1290000", m.Revenue.Annual.String())
}

func TestDeriveMetricsWithoutFeeRate(t *testing.T) {
	daily := []model.DailyBucket{{Date: day(2025, 1, 20), Volume: decimal.NewFromInt(10)}}
	m := service.DeriveMetrics(daily, service.BucketWeekly(daily), nil, nil, time.Now())

	require.Nil(t, m.Revenue)
	require.True(t, m.OpenInterest.IsZero())
	require.Equal(t, 0, m.ActiveMarkets)
}

func TestDeriveMetricsEmptyBuckets(t *testing.T) {
	fee := decimal.RequireFromString("0.01")
	m := service.DeriveMetrics(nil, nil, &model.MarketSnapshot{}, &fee, time.Now())

	require.True(t, m.Volume24H.IsZero())
	require.True(t, m.LatestWeekVolume.IsZero())
	require.NotNil(t, m.Revenue)
	require.True(t, m.Revenue.Daily.IsZero())
	require.True(t, m.Revenue.Annual.IsZero())
}

func TestProjectRevenueScaling(t *testing.T) {
	weeklyVolumes := []string{"0", "1", "123456.789", "98765432.1"}
	for _, w := range weeklyVolumes {
		vol := decimal.RequireFromString(w)
		rate := decimal.RequireFromString("0.02")

		r := service.ProjectRevenue(decimal.Zero, vol, rate)
		weekly := vol.Mul(rate)

		require.True(t, r.Weekly.Equal(weekly))
		require.True(t, r.Monthly.Equal(weekly.Mul(decimal.RequireFromString("4.3"))), "monthly for %s", w)
		require.True(t, r.Annual.Equal(weekly.Mul(decimal.RequireFromString("4.3")).Mul(decimal.NewFromInt(12))), "annual for %s", w)
	}
}

func TestAggregateMarkets(t *testing.T) {
	now := time.Now()
	markets := []model.Market{
		{ID: "a", Volume24H: decimal.NewFromInt(10), OpenInterest: decimal.NewFromInt(100), Liquidity: decimal.NewFromInt(5), Active: true},
		{ID: "b", Volume24H: decimal.NewFromInt(20), OpenInterest: decimal.NewFromInt(200), Active: true},
		{ID: "c", Volume24H: decimal.NewFromInt(1), Active: false},
	}

	s := service.AggregateMarkets(markets, now)

	require.Equal(t, "31", s.Volume24H.String())
	require.Equal(t, "300", s.OpenInterest.String())
	require.Equal(t, "5", s.Liquidity.String())
	require.Equal(t, 2, s.ActiveMarkets)
	require.Equal(t, 3, s.MarketCount)
}
