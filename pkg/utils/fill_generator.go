package utils

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
)

// FillGenerator produces matched trades the way an order-book exchange
// reports them: every trade yields a taker-focused fill with the exchange
// as taker and a mirrored maker-focused fill between the two traders.
type FillGenerator struct {
	exchange string
	assetID  string
	decimals int32
	rnd      *rand.Rand
}

// NewFillGenerator creates a generator; equal seeds give equal output
func NewFillGenerator(exchange string, asset model.SettlementAsset, seed int64) *FillGenerator {
	return &FillGenerator{
		exchange: exchange,
		assetID:  asset.ID,
		decimals: asset.Decimals,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// GenerateTrades creates count trades spread evenly over [from, to) and
// returns their 2*count fills in time order
func (g *FillGenerator) GenerateTrades(count int, from, to time.Time) []model.RawFillRecord {
	if count <= 0 || !to.After(from) {
		return nil
	}
	step := to.Sub(from) / time.Duration(count)
	unit := int64(1)
	for i := int32(0); i < g.decimals; i++ {
		unit *= 10
	}

	fills := make([]model.RawFillRecord, 0, count*2)
	for i := 0; i < count; i++ {
		txID := uuid.New().String()
		ts := from.Add(time.Duration(i) * step).UTC()
		token := strconv.Itoa(1000 + g.rnd.Intn(20))
		taker := "0xtrader" + strconv.Itoa(g.rnd.Intn(100))
		maker := "0xtrader" + strconv.Itoa(100+g.rnd.Intn(100))

		// price in cents, 1..99
		price := int64(1 + g.rnd.Intn(99))
		contracts := int64(1 + g.rnd.Intn(500))
		settlement := strconv.FormatInt(contracts*price*unit/100, 10)
		outcome := strconv.FormatInt(contracts*unit, 10)

		fills = append(fills,
			model.RawFillRecord{
				TransactionID:     txID,
				Timestamp:         ts,
				Maker:             taker,
				Taker:             g.exchange,
				MakerAssetID:      token,
				TakerAssetID:      g.assetID,
				MakerAmountFilled: outcome,
				TakerAmountFilled: settlement,
				ContractsFilled:   outcome,
			},
			model.RawFillRecord{
				TransactionID:     txID,
				Timestamp:         ts,
				Maker:             maker,
				Taker:             taker,
				MakerAssetID:      g.assetID,
				TakerAssetID:      token,
				MakerAmountFilled: settlement,
				TakerAmountFilled: outcome,
				ContractsFilled:   outcome,
			},
		)
	}

	return fills
}
