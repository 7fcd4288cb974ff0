package dto

import (
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
	"github.com/shopspring/decimal"
)

// LastUpdatedLayout is the timestamp format of ReportDTO.LastUpdated.
const LastUpdatedLayout = "2006-01-02 15:04:05 UTC"

const dateLayout = "2006-01-02"

// ReportDTO is the persisted report document. The dashboard renderer reads
// it verbatim, so field names and units must stay stable.
type ReportDTO struct {
	RunID       string         `json:"run_id"`
	Source      string         `json:"source"`
	SourceTag   string         `json:"source_tag"`
	LastUpdated string         `json:"last_updated"`
	Partial     bool           `json:"partial"`
	Metrics     MetricsDTO     `json:"metrics"`
	DailyData   []DailyDTO     `json:"daily_data"`
	WeeklyData  []WeeklyDTO    `json:"weekly_data"`
	Diagnostics DiagnosticsDTO `json:"diagnostics"`
}

// MetricsDTO represents a data transfer object for the metrics snapshot.
// Revenue fields are null when no fee rate is configured.
type MetricsDTO struct {
	Volume24H                float64  `json:"volume_24h"`
	Volume24HMillions        float64  `json:"volume_24h_millions"`
	LatestWeekVolume         float64  `json:"latest_week_volume"`
	LatestWeekVolumeBillions float64  `json:"latest_week_volume_billions"`
	MarketVolume24H          float64  `json:"market_volume_24h"`
	MarketVolume24HMillions  float64  `json:"market_volume_24h_millions"`
	OpenInterest             float64  `json:"open_interest"`
	OpenInterestMillions     float64  `json:"open_interest_millions"`
	Liquidity                float64  `json:"liquidity"`
	LiquidityMillions        float64  `json:"liquidity_millions"`
	ActiveMarkets            int      `json:"active_markets"`
	FeeRate                  *float64 `json:"fee_rate"`
	DailyRevenue             *float64 `json:"estimated_daily_revenue"`
	WeeklyRevenue            *float64 `json:"estimated_weekly_revenue"`
	MonthlyRevenue           *float64 `json:"estimated_monthly_revenue"`
	AnnualRevenue            *float64 `json:"estimated_annual_revenue"`
	DailyRevenueMillions     *float64 `json:"estimated_daily_revenue_millions"`
	WeeklyRevenueMillions    *float64 `json:"estimated_weekly_revenue_millions"`
	MonthlyRevenueMillions   *float64 `json:"estimated_monthly_revenue_millions"`
	AnnualRevenueMillions    *float64 `json:"estimated_annual_revenue_millions"`
	SourceOfTruth            string   `json:"source_of_truth"`
	ComputedAt               string   `json:"computed_at"`
}

type DailyDTO struct {
	Date           string  `json:"date"`
	Volume         float64 `json:"volume"`
	VolumeMillions float64 `json:"volume_millions"`
}

type WeeklyDTO struct {
	WeekStart      string  `json:"week_start"`
	Volume         float64 `json:"volume"`
	VolumeMillions float64 `json:"volume_millions"`
	VolumeBillions float64 `json:"volume_billions"`
}

// DiagnosticsDTO exposes the parallel reconciliation totals over the whole
// window. DoubleCountRatio is null when the taker-only total is zero.
type DiagnosticsDTO struct {
	NaiveSumAll          float64  `json:"naive_sum_all"`
	TakerOnly            float64  `json:"taker_only"`
	MakerOnly            float64  `json:"maker_only"`
	ExcludedVolume       float64  `json:"excluded_volume"`
	DoubleCountRatio     *float64 `json:"double_count_ratio"`
	TakerFocusedEvents   int      `json:"taker_focused_events"`
	MakerFocusedEvents   int      `json:"maker_focused_events"`
	UnclassifiableEvents int      `json:"unclassifiable_events"`
	PagesFetched         int      `json:"pages_fetched"`
	FetchRetries         int      `json:"fetch_retries"`
	FetchError           string   `json:"fetch_error,omitempty"`
}

// FetchStats summarizes how the record collection went.
type FetchStats struct {
	Pages   int
	Retries int
	Err     error
}

// ReportInput is everything a report is built from.
type ReportInput struct {
	RunID          string
	Source         string
	SourceTag      model.SourceTag
	Now            time.Time
	Partial        bool
	Metrics        model.MetricsSnapshot
	Daily          []model.DailyBucket
	Weekly         []model.WeeklyBucket
	Reconciliation *service.Reconciliation
	Fetch          FetchStats
}

// NewReport rounds every monetary value at this boundary: currency and
// millions to 2 decimals, billions to 3, ratios to 4.
func NewReport(in ReportInput) *ReportDTO {
	r := &ReportDTO{
		RunID:       in.RunID,
		Source:      in.Source,
		SourceTag:   string(in.SourceTag),
		LastUpdated: in.Now.UTC().Format(LastUpdatedLayout),
		Partial:     in.Partial,
		Metrics:     fromMetrics(in.Metrics),
		DailyData:   make([]DailyDTO, 0, len(in.Daily)),
		WeeklyData:  make([]WeeklyDTO, 0, len(in.Weekly)),
	}

	for _, d := range in.Daily {
		r.DailyData = append(r.DailyData, DailyDTO{
			Date:           d.Date.Format(dateLayout),
			Volume:         Currency(d.Volume),
			VolumeMillions: Millions(d.Volume),
		})
	}
	for _, w := range in.Weekly {
		r.WeeklyData = append(r.WeeklyData, WeeklyDTO{
			WeekStart:      w.WeekStart.Format(dateLayout),
			Volume:         Currency(w.Volume),
			VolumeMillions: Millions(w.Volume),
			VolumeBillions: Billions(w.Volume),
		})
	}

	r.Diagnostics = DiagnosticsDTO{
		PagesFetched: in.Fetch.Pages,
		FetchRetries: in.Fetch.Retries,
	}
	if in.Fetch.Err != nil {
		r.Diagnostics.FetchError = in.Fetch.Err.Error()
	}
	if rec := in.Reconciliation; rec != nil {
		t := rec.Totals
		r.Diagnostics.NaiveSumAll = Currency(t.NaiveSumAll)
		r.Diagnostics.TakerOnly = Currency(t.TakerOnly)
		r.Diagnostics.MakerOnly = Currency(t.MakerOnly)
		r.Diagnostics.ExcludedVolume = Currency(t.Excluded)
		r.Diagnostics.TakerFocusedEvents = t.TakerEvents
		r.Diagnostics.MakerFocusedEvents = t.MakerEvents
		r.Diagnostics.UnclassifiableEvents = t.UnclassifiableEvents
		if ratio, ok := rec.DoubleCountRatio(); ok {
			v := ratio.Round(4).InexactFloat64()
			r.Diagnostics.DoubleCountRatio = &v
		}
	}

	return r
}

func fromMetrics(m model.MetricsSnapshot) MetricsDTO {
	out := MetricsDTO{
		Volume24H:                Currency(m.Volume24H),
		Volume24HMillions:        Millions(m.Volume24H),
		LatestWeekVolume:         Currency(m.LatestWeekVolume),
		LatestWeekVolumeBillions: Billions(m.LatestWeekVolume),
		MarketVolume24H:          Currency(m.MarketVolume24H),
		MarketVolume24HMillions:  Millions(m.MarketVolume24H),
		OpenInterest:             Currency(m.OpenInterest),
		OpenInterestMillions:     Millions(m.OpenInterest),
		Liquidity:                Currency(m.Liquidity),
		LiquidityMillions:        Millions(m.Liquidity),
		ActiveMarkets:            m.ActiveMarkets,
		SourceOfTruth:            string(m.SourceOfTruth),
		ComputedAt:               m.ComputedAt.UTC().Format(time.RFC3339),
	}
	if rev := m.Revenue; rev != nil {
		out.FeeRate = ptr(rev.FeeRate.InexactFloat64())
		out.DailyRevenue = ptr(Currency(rev.Daily))
		out.WeeklyRevenue = ptr(Currency(rev.Weekly))
		out.MonthlyRevenue = ptr(Currency(rev.Monthly))
		out.AnnualRevenue = ptr(Currency(rev.Annual))
		out.DailyRevenueMillions = ptr(Millions(rev.Daily))
		out.WeeklyRevenueMillions = ptr(Millions(rev.Weekly))
		out.MonthlyRevenueMillions = ptr(Millions(rev.Monthly))
		out.AnnualRevenueMillions = ptr(Millions(rev.Annual))
	}
	return out
}

// Currency rounds a raw currency amount to cents.
func Currency(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// Millions expresses d in millions, 2 decimals.
func Millions(d decimal.Decimal) float64 {
	return d.Shift(-6).Round(2).InexactFloat64()
}

// Billions expresses d in billions, 3 decimals.
func Billions(d decimal.Decimal) float64 {
	return d.Shift(-9).Round(3).InexactFloat64()
}

func ptr(v float64) *float64 {
	return &v
}
