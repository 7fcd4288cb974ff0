package service

import (
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Revenue projection multipliers. These are fixed approximations (a month is
// taken as 4.3 weeks), not fitted values.
var (
	WeeksPerMonth = decimal.RequireFromString("4.3")
	MonthsPerYear = decimal.NewFromInt(12)
)

// DeriveMetrics builds the metrics snapshot from the buckets and a market
// snapshot. feeRate is optional; revenue is projected only when it is set.
// snapshot may be nil when the market listing could not be fetched.
func DeriveMetrics(
	daily []model.DailyBucket,
	weekly []model.WeeklyBucket,
	snapshot *model.MarketSnapshot,
	feeRate *decimal.Decimal,
	now time.Time,
) model.MetricsSnapshot {
	m := model.MetricsSnapshot{
		SourceOfTruth: model.SourceReconciled,
		ComputedAt:    now.UTC(),
	}

	if len(daily) > 0 {
		m.Volume24H = daily[len(daily)-1].Volume
	}
	if len(weekly) > 0 {
		m.LatestWeekVolume = weekly[len(weekly)-1].Volume
	}

	if snapshot != nil {
		m.MarketVolume24H = snapshot.Volume24H
		m.OpenInterest = snapshot.OpenInterest
		m.Liquidity = snapshot.Liquidity
		m.ActiveMarkets = snapshot.ActiveMarkets
	}

	if feeRate != nil {
		m.Revenue = ProjectRevenue(m.Volume24H, m.LatestWeekVolume, *feeRate)
	}

	return m
}

// ProjectRevenue applies the fee rate to the latest day and week and scales
// the weekly figure to a month and a year.
func ProjectRevenue(volume24h, weekVolume, feeRate decimal.Decimal) *model.Revenue {
	weekly := weekVolume.Mul(feeRate)
	monthly := weekly.Mul(WeeksPerMonth)
	return &model.Revenue{
		FeeRate: feeRate,
		Daily:   volume24h.Mul(feeRate),
		Weekly:  weekly,
		Monthly: monthly,
		Annual:  monthly.Mul(MonthsPerYear),
	}
}

// AggregateMarkets sums the per-market fields of a listing into a snapshot.
func AggregateMarkets(markets []model.Market, now time.Time) *model.MarketSnapshot {
	s := &model.MarketSnapshot{
		MarketCount: len(markets),
		FetchedAt:   now.UTC(),
	}
	for _, mk := range markets {
		s.Volume24H = s.Volume24H.Add(mk.Volume24H)
		s.TotalVolume = s.TotalVolume.Add(mk.TotalVolume)
		s.OpenInterest = s.OpenInterest.Add(mk.OpenInterest)
		s.Liquidity = s.Liquidity.Add(mk.Liquidity)
		if mk.Active {
			s.ActiveMarkets++
		}
	}
	return s
}
