package venue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
)

const (
	CTFExchange        = "0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e"
	NegRiskCTFExchange = "0xc5d563a36ae78145c45a50134d48a1215220f80a"

	// PolymarketSettlementAssetID is the asset id of the USDC leg of a fill.
	PolymarketSettlementAssetID = "0"

	polymarketFillsLimit     = 1000
	gammaMarketsLimit        = 100
	gammaMaxMarketPages      = 200
	gammaMarketsPath         = "/markets"
	subgraphOrderFilledQuery = `query OrderFilled($first: Int!, $cursor: String!, $since: BigInt!) {
  orderFilledEvents(
    first: $first
    orderBy: id
    orderDirection: asc
    where: { id_gt: $cursor, timestamp_gte: $since }
  ) {
    id
    transactionHash
    timestamp
    maker
    taker
    makerAssetId
    takerAssetId
    makerAmountFilled
    takerAmountFilled
  }
}`
)

// PolymarketSettlementAsset is USDC with 6 decimals.
var PolymarketSettlementAsset = model.SettlementAsset{ID: PolymarketSettlementAssetID, Decimals: 6}

// PolymarketContracts returns the known exchange contracts that appear as
// taker on the taker-focused fill of every match.
func PolymarketContracts() model.ContractSet {
	return model.NewContractSet(CTFExchange, NegRiskCTFExchange)
}

type PolymarketOptions struct {
	Subgraph  ClientOptions
	Gamma     ClientOptions
	PageLimit int
	// MaxMarketPages bounds the snapshot listing, 0 means the default
	MaxMarketPages int
}

// Polymarket reads order fills from the order-book subgraph and the market
// snapshot from the Gamma API.
type Polymarket struct {
	subgraph       *jsonClient
	gamma          *jsonClient
	pageLimit      int
	maxMarketPages int
}

var (
	_ repository.RecordSource           = (*Polymarket)(nil)
	_ repository.MarketSnapshotProvider = (*Polymarket)(nil)
)

func NewPolymarket(opts PolymarketOptions) *Polymarket {
	limit := opts.PageLimit
	if limit <= 0 || limit > polymarketFillsLimit {
		limit = polymarketFillsLimit
	}
	maxPages := opts.MaxMarketPages
	if maxPages <= 0 {
		maxPages = gammaMaxMarketPages
	}
	return &Polymarket{
		subgraph:       newJSONClient(opts.Subgraph),
		gamma:          newJSONClient(opts.Gamma),
		pageLimit:      limit,
		maxMarketPages: maxPages,
	}
}

func (p *Polymarket) Name() string {
	return "polymarket"
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type orderFilledEvent struct {
	ID                string    `json:"id"`
	TransactionHash   string    `json:"transactionHash"`
	Timestamp         rawNumber `json:"timestamp"`
	Maker             string    `json:"maker"`
	Taker             string    `json:"taker"`
	MakerAssetID      string    `json:"makerAssetId"`
	TakerAssetID      string    `json:"takerAssetId"`
	MakerAmountFilled rawNumber `json:"makerAmountFilled"`
	TakerAmountFilled rawNumber `json:"takerAmountFilled"`
}

type orderFilledResponse struct {
	Data struct {
		OrderFilledEvents []orderFilledEvent `json:"orderFilledEvents"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// NextPage pages by event id. A page shorter than the limit is the last one.
func (p *Polymarket) NextPage(ctx context.Context, req model.PageRequest) (*model.FillPage, error) {
	limit := req.Limit
	if limit <= 0 || limit > p.pageLimit {
		limit = p.pageLimit
	}
	var since int64
	if !req.Since.IsZero() {
		since = req.Since.Unix()
	}

	var resp orderFilledResponse
	err := p.subgraph.post(ctx, "", graphQLRequest{
		Query: subgraphOrderFilledQuery,
		Variables: map[string]any{
			"first":  limit,
			"cursor": req.Cursor,
			"since":  strconv.FormatInt(since, 10),
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch polymarket fills: %w", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, errors.New("subgraph query failed: " + strings.Join(msgs, "; "))
	}

	events := resp.Data.OrderFilledEvents
	page := &model.FillPage{
		Records: make([]model.RawFillRecord, 0, len(events)),
		Done:    len(events) < limit,
	}
	for _, ev := range events {
		page.Records = append(page.Records, polymarketFill(ev))
	}
	if len(events) > 0 {
		page.NextCursor = events[len(events)-1].ID
	} else {
		page.NextCursor = req.Cursor
	}

	return page, nil
}

func polymarketFill(ev orderFilledEvent) model.RawFillRecord {
	var ts time.Time
	if secs, err := strconv.ParseInt(string(ev.Timestamp), 10, 64); err == nil && secs > 0 {
		ts = time.Unix(secs, 0).UTC()
	}

	// the outcome-token leg is whichever side is not USDC
	contracts := string(ev.MakerAmountFilled)
	if ev.MakerAssetID == PolymarketSettlementAssetID {
		contracts = string(ev.TakerAmountFilled)
	}

	txID := ev.TransactionHash
	if txID == "" {
		txID = ev.ID
	}

	return model.RawFillRecord{
		TransactionID:     txID,
		Timestamp:         ts,
		Maker:             ev.Maker,
		Taker:             ev.Taker,
		MakerAssetID:      ev.MakerAssetID,
		TakerAssetID:      ev.TakerAssetID,
		MakerAmountFilled: string(ev.MakerAmountFilled),
		TakerAmountFilled: string(ev.TakerAmountFilled),
		ContractsFilled:   contracts,
	}
}

type gammaMarket struct {
	ID           string      `json:"id"`
	Volume24Hr   flexDecimal `json:"volume24hr"`
	Volume       flexDecimal `json:"volume"`
	OpenInterest flexDecimal `json:"openInterest"`
	Liquidity    flexDecimal `json:"liquidity"`
	Active       flexBool    `json:"active"`
	Closed       flexBool    `json:"closed"`
}

// Snapshot aggregates every active market, paging by offset. Markets with an
// unparseable numeric field are skipped and counted.
func (p *Polymarket) Snapshot(ctx context.Context) (*model.MarketSnapshot, error) {
	var (
		markets   []model.Market
		skipped   int
		exhausted bool
	)
	for page := 0; page < p.maxMarketPages; page++ {
		var batch []gammaMarket
		err := p.gamma.get(ctx, gammaMarketsPath, map[string]string{
			"limit":  strconv.Itoa(gammaMarketsLimit),
			"offset": strconv.Itoa(page * gammaMarketsLimit),
			"active": "true",
			"closed": "false",
		}, &batch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch gamma markets page %d: %w", page+1, err)
		}

		for _, m := range batch {
			if m.Volume24Hr.Invalid || m.Volume.Invalid || m.OpenInterest.Invalid || m.Liquidity.Invalid {
				skipped++
				continue
			}
			markets = append(markets, model.Market{
				ID:           m.ID,
				Volume24H:    m.Volume24Hr.Decimal,
				TotalVolume:  m.Volume.Decimal,
				OpenInterest: m.OpenInterest.Decimal,
				Liquidity:    m.Liquidity.Decimal,
				Active:       bool(m.Active) && !bool(m.Closed),
			})
		}

		if len(batch) < gammaMarketsLimit {
			exhausted = true
			break
		}
	}

	snap := service.AggregateMarkets(markets, time.Now())
	snap.SkippedMarkets = skipped
	snap.Partial = !exhausted
	return snap, nil
}
