package app_test

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/venue"
)

const exchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"

var usdc = model.SettlementAsset{ID: "0", Decimals: 6}

func unavailable() error {
	return &venue.StatusError{Method: http.MethodGet, URL: "http://venue/fills", StatusCode: http.StatusServiceUnavailable}
}

func unauthorized() error {
	return &venue.StatusError{Method: http.MethodGet, URL: "http://venue/fills", StatusCode: http.StatusUnauthorized}
}

// splitMerge is the documented transaction: 90 USDC of taker volume whose
// maker-side mirror events add another 6809.80
func splitMerge(ts time.Time) []model.RawFillRecord {
	fill := func(taker, makerAmt, takerAmt string) model.RawFillRecord {
		return model.RawFillRecord{
			TransactionID: "0xsplit", Timestamp: ts, Maker: "0xmaker", Taker: taker,
			MakerAssetID: "77", TakerAssetID: "0", MakerAmountFilled: makerAmt, TakerAmountFilled: takerAmt,
		}
	}
	return []model.RawFillRecord{
		fill(exchange, "3157020000", "28410000"),
		fill("0xwallet", "3157020000", "28410000"),
		fill(exchange, "6842980000", "61590000"),
		fill("0xwallet", "6842980000", "6781390000"),
	}
}

// fakeSource serves pages by index; failures[i] errors are returned, in
// order, before page i succeeds
type fakeSource struct {
	mu       sync.Mutex
	pages    [][]model.RawFillRecord
	failures map[int][]error
	calls    int
}

func (s *fakeSource) Name() string { return "polymarket" }

func (s *fakeSource) NextPage(ctx context.Context, req model.PageRequest) (*model.FillPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := 0
	if req.Cursor != "" {
		idx, _ = strconv.Atoi(req.Cursor)
	}
	if errs := s.failures[idx]; len(errs) > 0 {
		s.failures[idx] = errs[1:]
		return nil, errs[0]
	}
	if idx >= len(s.pages) {
		return &model.FillPage{Done: true}, nil
	}

	return &model.FillPage{
		Records:    s.pages[idx],
		NextCursor: strconv.Itoa(idx + 1),
		Done:       idx == len(s.pages)-1,
	}, nil
}

type fakeSnapshots struct {
	snapshot *model.MarketSnapshot
	err      error
}

func (f fakeSnapshots) Snapshot(context.Context) (*model.MarketSnapshot, error) {
	return f.snapshot, f.err
}

type memoryStore struct {
	mu     sync.Mutex
	report *dto.ReportDTO
	saves  int
	err    error
}

func (m *memoryStore) Save(_ context.Context, report *dto.ReportDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.report = report
	m.saves++
	return nil
}

func (m *memoryStore) Load(context.Context) (*dto.ReportDTO, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.report == nil {
		return nil, repository.ErrNotFound
	}
	return m.report, nil
}

type memoryCache struct {
	mu      sync.Mutex
	reports map[string]*dto.ReportDTO
	err     error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{reports: make(map[string]*dto.ReportDTO)}
}

func (c *memoryCache) SaveReport(_ context.Context, report *dto.ReportDTO) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.reports[report.Source] = report
	return nil
}

func (c *memoryCache) GetReport(_ context.Context, source string) (*dto.ReportDTO, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	r, ok := c.reports[source]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

type memoryEvents struct {
	fills []model.ClassifiedEvent
	days  []service.DayVolume
	err   error
}

func (m *memoryEvents) SaveFills(_ context.Context, _, _ string, events []model.ClassifiedEvent) error {
	m.fills = append(m.fills, events...)
	return m.err
}

func (m *memoryEvents) SaveDailyVolumes(_ context.Context, _, _ string, days []service.DayVolume) error {
	m.days = append(m.days, days...)
	return m.err
}

func (m *memoryEvents) GetDailyVolumesSince(context.Context, string, time.Time) ([]service.DayVolume, error) {
	return m.days, m.err
}

type memoryPublisher struct {
	published []*dto.ReportDTO
	err       error
}

func (p *memoryPublisher) PublishReport(_ context.Context, report *dto.ReportDTO) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, report)
	return nil
}

func (p *memoryPublisher) Close() error { return nil }

var errSinkDown = errors.New("sink down")

func noSleep(context.Context, time.Duration) error { return nil }
