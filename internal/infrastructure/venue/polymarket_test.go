package venue_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type subgraphRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func fillEvent(id string, ts time.Time, maker, taker, makerAsset, takerAsset, makerAmt, takerAmt string) map[string]string {
	return map[string]string{
		"id":                id,
		"transactionHash":   "0xsplitmerge",
		"timestamp":         strconv.FormatInt(ts.Unix(), 10),
		"maker":             maker,
		"taker":             taker,
		"makerAssetId":      makerAsset,
		"takerAssetId":      takerAsset,
		"makerAmountFilled": makerAmt,
		"takerAmountFilled": takerAmt,
	}
}

func TestPolymarketNextPage(t *testing.T) {
	ts := time.Date(2024, 11, 5, 14, 0, 0, 0, time.UTC)
	events := []map[string]string{
		fillEvent("e1", ts, "0xa", "0xb", "0", "77", "28410000", "57000000"),
		fillEvent("e2", ts, "0xc", "0xb", "0", "78", "28410000", "57000000"),
		fillEvent("e3", ts, "0xd", "0xb", "0", "77", "61590000", "99000000"),
		fillEvent("e4", ts, "0xe", "0xb", "0", "78", "6781390000", "7000000000"),
		fillEvent("e5", ts, "0xb", venue.NegRiskCTFExchange, "77", "0", "100000000", "90000000"),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req subgraphRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Contains(t, req.Query, "orderFilledEvents")
		assert.Equal(t, float64(3), req.Variables["first"])

		var page []map[string]string
		switch req.Variables["cursor"] {
		case "":
			page = events[:3]
		case "e3":
			page = events[3:]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"orderFilledEvents": page},
		})
	}))
	defer srv.Close()

	p := venue.NewPolymarket(venue.PolymarketOptions{
		Subgraph:  venue.ClientOptions{BaseURL: srv.URL},
		PageLimit: 3,
	})
	ctx := context.Background()

	first, err := p.NextPage(ctx, model.PageRequest{Since: ts.Add(-time.Hour)})
	require.NoError(t, err)
	require.False(t, first.Done)
	require.Equal(t, "e3", first.NextCursor)

	second, err := p.NextPage(ctx, model.PageRequest{Cursor: first.NextCursor})
	require.NoError(t, err)
	require.True(t, second.Done, "a short page ends pagination")
	require.Equal(t, "e5", second.NextCursor)
	require.Equal(t, ts, second.Records[1].Timestamp)

	records := append(first.Records, second.Records...)
	rc := service.Reconcile(service.ClassifyAll(records, venue.PolymarketContracts()), venue.PolymarketSettlementAsset)

	require.Equal(t, "90", rc.Totals.TakerOnly.String())
	require.Equal(t, "6899.8", rc.Totals.MakerOnly.String())
	require.Equal(t, 1, rc.Totals.TakerEvents)
	require.Equal(t, 4, rc.Totals.MakerEvents)
}

func TestPolymarketGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"indexing_error"}]}`))
	}))
	defer srv.Close()

	p := venue.NewPolymarket(venue.PolymarketOptions{Subgraph: venue.ClientOptions{BaseURL: srv.URL}})
	_, err := p.NextPage(context.Background(), model.PageRequest{})
	require.ErrorContains(t, err, "indexing_error")
}

func TestPolymarketSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "false", r.URL.Query().Get("closed"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		var batch []string
		switch offset {
		case 0:
			for i := 0; i < 100; i++ {
				// numeric fields arrive as strings or numbers
				batch = append(batch, fmt.Sprintf(`{"id":"m%d","volume24hr":"10.5","volume":100,"openInterest":2,"liquidity":"1","active":true,"closed":false}`, i))
			}
		case 100:
			batch = append(batch,
				`{"id":"x","volume24hr":null,"volume":"","liquidity":"3","active":"true","closed":"true"}`,
				`{"id":"y","volume24hr":4,"active":false}`,
			)
		}
		_, _ = w.Write([]byte("[" + strings.Join(batch, ",") + "]"))
	}))
	defer srv.Close()

	p := venue.NewPolymarket(venue.PolymarketOptions{Gamma: venue.ClientOptions{BaseURL: srv.URL}})
	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	require.Equal(t, 102, snap.MarketCount)
	require.Equal(t, 100, snap.ActiveMarkets)
	require.Equal(t, "1054", snap.Volume24H.String())
	require.Equal(t, "10000", snap.TotalVolume.String())
	require.Equal(t, "200", snap.OpenInterest.String())
	require.Equal(t, "103", snap.Liquidity.String())
}

func TestPolymarketMalformedFillStaysOnPage(t *testing.T) {
	ts := time.Date(2024, 11, 5, 14, 30, 0, 0, time.UTC).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fmt.Sprintf(`{"data":{"orderFilledEvents":[
			{"id":"a","timestamp":"%d","maker":"0x1","taker":"%s","makerAssetId":"7","takerAssetId":"0","makerAmountFilled":"200000000","takerAmountFilled":100000000},
			{"id":"b","timestamp":"%d","maker":"0x1","taker":"%s","makerAssetId":"7","takerAssetId":"0","makerAmountFilled":"200000000","takerAmountFilled":"1e6x"},
			{"id":"c","timestamp":null,"maker":"0x1","taker":"%s","makerAssetId":"7","takerAssetId":"0","makerAmountFilled":null,"takerAmountFilled":"5000000"}
		]}}`, ts, venue.CTFExchange, ts, venue.CTFExchange, venue.CTFExchange)))
	}))
	defer srv.Close()

	p := venue.NewPolymarket(venue.PolymarketOptions{Subgraph: venue.ClientOptions{BaseURL: srv.URL}})
	page, err := p.NextPage(context.Background(), model.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Records, 3)
	require.Equal(t, "100000000", page.Records[0].TakerAmountFilled)
	require.True(t, page.Records[2].Timestamp.IsZero())

	rc := service.Reconcile(service.ClassifyAll(page.Records, venue.PolymarketContracts()), venue.PolymarketSettlementAsset)
	require.Equal(t, "100", rc.Totals.TakerOnly.String())
	require.Equal(t, 1, rc.Totals.TakerEvents)
	require.Equal(t, 2, rc.Totals.UnclassifiableEvents)
}

func TestPolymarketSnapshotSkipsMalformedMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":"a","volume24hr":"10","volume":"100","active":true,"closed":false},
			{"id":"b","volume24hr":"ten","active":true,"closed":false},
			{"id":"c","volume24hr":"1","liquidity":"2","active":"maybe","closed":false}
		]`))
	}))
	defer srv.Close()

	p := venue.NewPolymarket(venue.PolymarketOptions{Gamma: venue.ClientOptions{BaseURL: srv.URL}})
	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	require.False(t, snap.Partial)
	require.Equal(t, 1, snap.SkippedMarkets)
	require.Equal(t, 2, snap.MarketCount)
	require.Equal(t, 1, snap.ActiveMarkets)
	require.Equal(t, "11", snap.Volume24H.String())
}

func TestPolymarketSnapshotPageLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		batch := make([]string, 100)
		for i := range batch {
			batch[i] = `{"volume24hr":1,"active":true,"closed":false}`
		}
		_, _ = w.Write([]byte("[" + strings.Join(batch, ",") + "]"))
	}))
	defer srv.Close()

	p := venue.NewPolymarket(venue.PolymarketOptions{Gamma: venue.ClientOptions{BaseURL: srv.URL}, MaxMarketPages: 3})
	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	require.True(t, snap.Partial)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, 300, snap.MarketCount)
}
