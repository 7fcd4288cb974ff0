package venue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
)

const (
	// KalshiExchange stands in for the exchange as counterparty. Kalshi
	// trades are reported once, from the taker's side.
	KalshiExchange = "kalshi"

	KalshiSettlementAssetID = "USD"

	kalshiTradesLimit     = 1000
	kalshiMarketsLimit    = 200
	kalshiMaxMarketPages  = 100
	kalshiTradesPath      = "/markets/trades"
	kalshiMarketsPath     = "/markets"
	kalshiOpenMarketState = "open"
)

// KalshiSettlementAsset counts whole contracts, each with $1 notional.
var KalshiSettlementAsset = model.SettlementAsset{ID: KalshiSettlementAssetID, Decimals: 0}

// KalshiContracts is the contract set matching the fills produced by Kalshi.
func KalshiContracts() model.ContractSet {
	return model.NewContractSet(KalshiExchange)
}

type KalshiOptions struct {
	Trades    ClientOptions
	Markets   ClientOptions
	PageLimit int
	// MaxMarketPages bounds the snapshot listing, 0 means the default
	MaxMarketPages int
}

// Kalshi reads trades and open markets from the Kalshi trade API.
type Kalshi struct {
	trades         *jsonClient
	markets        *jsonClient
	pageLimit      int
	maxMarketPages int
}

var (
	_ repository.RecordSource           = (*Kalshi)(nil)
	_ repository.MarketSnapshotProvider = (*Kalshi)(nil)
)

func NewKalshi(opts KalshiOptions) *Kalshi {
	limit := opts.PageLimit
	if limit <= 0 || limit > kalshiTradesLimit {
		limit = kalshiTradesLimit
	}
	maxPages := opts.MaxMarketPages
	if maxPages <= 0 {
		maxPages = kalshiMaxMarketPages
	}
	return &Kalshi{
		trades:         newJSONClient(opts.Trades),
		markets:        newJSONClient(opts.Markets),
		pageLimit:      limit,
		maxMarketPages: maxPages,
	}
}

func (k *Kalshi) Name() string {
	return "kalshi"
}

type kalshiTrade struct {
	TradeID     string    `json:"trade_id"`
	Ticker      string    `json:"ticker"`
	Count       rawNumber `json:"count"`
	CreatedTime string    `json:"created_time"`
}

type kalshiTradesResponse struct {
	Trades []kalshiTrade `json:"trades"`
	Cursor string        `json:"cursor"`
}

func (k *Kalshi) NextPage(ctx context.Context, req model.PageRequest) (*model.FillPage, error) {
	limit := req.Limit
	if limit <= 0 || limit > k.pageLimit {
		limit = k.pageLimit
	}
	query := map[string]string{
		"limit":  strconv.Itoa(limit),
		"cursor": req.Cursor,
	}
	if !req.Since.IsZero() {
		query["min_ts"] = strconv.FormatInt(req.Since.Unix(), 10)
	}

	var resp kalshiTradesResponse
	if err := k.trades.get(ctx, kalshiTradesPath, query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch kalshi trades: %w", err)
	}

	page := &model.FillPage{
		Records:    make([]model.RawFillRecord, 0, len(resp.Trades)),
		NextCursor: resp.Cursor,
		Done:       resp.Cursor == "" || len(resp.Trades) == 0,
	}
	for _, t := range resp.Trades {
		page.Records = append(page.Records, kalshiFill(t))
	}

	return page, nil
}

// kalshiFill maps a trade to a single taker-focused fill. An unparseable
// created_time or count leaves the fill unclassifiable.
func kalshiFill(t kalshiTrade) model.RawFillRecord {
	var ts time.Time
	if parsed, err := time.Parse(time.RFC3339, t.CreatedTime); err == nil {
		ts = parsed.UTC()
	}
	count := string(t.Count)

	return model.RawFillRecord{
		TransactionID:     t.TradeID,
		Timestamp:         ts,
		Taker:             KalshiExchange,
		MakerAssetID:      t.Ticker,
		TakerAssetID:      KalshiSettlementAssetID,
		MakerAmountFilled: count,
		TakerAmountFilled: count,
		ContractsFilled:   count,
	}
}

type kalshiMarket struct {
	Ticker       string      `json:"ticker"`
	Status       string      `json:"status"`
	Volume       flexDecimal `json:"volume"`
	Volume24H    flexDecimal `json:"volume_24h"`
	OpenInterest flexDecimal `json:"open_interest"`
	Liquidity    flexDecimal `json:"liquidity"`
}

type kalshiMarketsResponse struct {
	Markets []kalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

// Snapshot aggregates every open market. Markets with an unparseable numeric
// field are skipped and counted.
func (k *Kalshi) Snapshot(ctx context.Context) (*model.MarketSnapshot, error) {
	var (
		markets   []model.Market
		cursor    string
		skipped   int
		exhausted bool
	)
	for page := 0; page < k.maxMarketPages; page++ {
		var resp kalshiMarketsResponse
		err := k.markets.get(ctx, kalshiMarketsPath, map[string]string{
			"status": kalshiOpenMarketState,
			"limit":  strconv.Itoa(kalshiMarketsLimit),
			"cursor": cursor,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch kalshi markets page %d: %w", page+1, err)
		}

		for _, m := range resp.Markets {
			if m.Volume.Invalid || m.Volume24H.Invalid || m.OpenInterest.Invalid || m.Liquidity.Invalid {
				skipped++
				continue
			}
			markets = append(markets, model.Market{
				ID:           m.Ticker,
				Volume24H:    m.Volume24H.Decimal,
				TotalVolume:  m.Volume.Decimal,
				OpenInterest: m.OpenInterest.Decimal,
				Liquidity:    m.Liquidity.Decimal.Shift(-2), // quoted in cents
				Active:       m.Status == "active" || m.Status == kalshiOpenMarketState,
			})
		}

		cursor = resp.Cursor
		if cursor == "" || len(resp.Markets) == 0 {
			exhausted = true
			break
		}
	}

	snap := service.AggregateMarkets(markets, time.Now())
	snap.SkippedMarkets = skipped
	snap.Partial = !exhausted
	return snap, nil
}
