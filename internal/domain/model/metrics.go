package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceTag states where a report's numbers come from.
type SourceTag string

const (
	SourceReconciled     SourceTag = "reconciled"
	SourceMarketSnapshot SourceTag = "market_snapshot"
	SourceSynthetic      SourceTag = "synthetic"
)

// DailyBucket holds reconciled volume for one UTC calendar date.
type DailyBucket struct {
	Date   time.Time
	Volume decimal.Decimal
}

// WeeklyBucket holds reconciled volume for one ISO week, keyed by its Monday.
type WeeklyBucket struct {
	WeekStart time.Time
	Volume    decimal.Decimal
}

// Market is a single venue market as seen in a snapshot listing.
type Market struct {
	ID           string
	Volume24H    decimal.Decimal
	TotalVolume  decimal.Decimal
	OpenInterest decimal.Decimal
	Liquidity    decimal.Decimal
	Active       bool
}

// MarketSnapshot is a point-in-time aggregate over the venue's market listing.
// Partial is set when the listing was cut at the page bound. SkippedMarkets
// counts listing entries left out because a numeric field did not parse.
type MarketSnapshot struct {
	Volume24H      decimal.Decimal
	TotalVolume    decimal.Decimal
	OpenInterest   decimal.Decimal
	Liquidity      decimal.Decimal
	ActiveMarkets  int
	MarketCount    int
	SkippedMarkets int
	Partial        bool
	FetchedAt      time.Time
}

// Revenue holds fee-rate based revenue projections.
type Revenue struct {
	FeeRate decimal.Decimal
	Daily   decimal.Decimal
	Weekly  decimal.Decimal
	Monthly decimal.Decimal
	Annual  decimal.Decimal
}

// MetricsSnapshot is the flat metrics record derived on every run.
// Revenue is nil when no fee rate is configured.
type MetricsSnapshot struct {
	Volume24H        decimal.Decimal
	LatestWeekVolume decimal.Decimal
	MarketVolume24H  decimal.Decimal
	OpenInterest     decimal.Decimal
	Liquidity        decimal.Decimal
	ActiveMarkets    int
	Revenue          *Revenue
	SourceOfTruth    SourceTag
	ComputedAt       time.Time
}
