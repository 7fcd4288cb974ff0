package venue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/pkg/utils"
)

const (
	// SyntheticExchange is the taker address on generated taker-focused fills.
	SyntheticExchange = "0x5e7e7e7e7e7e7e7e7e7e7e7e7e7e7e7e7e7e7e7e"

	syntheticTradesPerDay = 48
	syntheticPageSize     = 500
)

var SyntheticSettlementAsset = model.SettlementAsset{ID: "0", Decimals: 6}

func SyntheticContracts() model.ContractSet {
	return model.NewContractSet(SyntheticExchange)
}

// Synthetic serves generated fills. Reports built from it are tagged
// synthetic and never stand in for a real venue.
type Synthetic struct {
	fills    []model.RawFillRecord
	pageSize int
}

var _ repository.RecordSource = (*Synthetic)(nil)

// NewSynthetic generates lookbackDays of trades ending at now
func NewSynthetic(now time.Time, lookbackDays int, seed int64) *Synthetic {
	gen := utils.NewFillGenerator(SyntheticExchange, SyntheticSettlementAsset, seed)
	from := now.Add(-time.Duration(lookbackDays) * 24 * time.Hour)

	return &Synthetic{
		fills:    gen.GenerateTrades(lookbackDays*syntheticTradesPerDay, from, now),
		pageSize: syntheticPageSize,
	}
}

func (s *Synthetic) Name() string {
	return "synthetic"
}

// NextPage uses the offset into the generated fills as cursor
func (s *Synthetic) NextPage(ctx context.Context, req model.PageRequest) (*model.FillPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	offset := 0
	if req.Cursor != "" {
		n, err := strconv.Atoi(req.Cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid synthetic cursor %q", req.Cursor)
		}
		offset = n
	}
	size := req.Limit
	if size <= 0 || size > s.pageSize {
		size = s.pageSize
	}

	end := offset + size
	if end > len(s.fills) {
		end = len(s.fills)
	}
	if offset > end {
		offset = end
	}

	var records []model.RawFillRecord
	for _, f := range s.fills[offset:end] {
		if !req.Since.IsZero() && f.Timestamp.Before(req.Since) {
			continue
		}
		records = append(records, f)
	}

	return &model.FillPage{
		Records:    records,
		NextCursor: strconv.Itoa(end),
		Done:       end >= len(s.fills),
	}, nil
}
