package service

import (
	"strings"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Classify labels a fill by the perspective it was emitted from.
//
// A trade against the exchange emits one event where the exchange contract
// is the taker (the requester's order) and a mirrored event for each maker
// order it matched. Only the former carries the requester's intent.
// Records with missing asset ids or non-numeric amounts are unclassifiable.
func Classify(rec model.RawFillRecord, contracts model.ContractSet) model.Side {
	side, _, _ := classify(rec, contracts)
	return side
}

// ClassifyAll classifies every record and keeps the parsed amounts so the
// reconciler does not parse them twice.
func ClassifyAll(records []model.RawFillRecord, contracts model.ContractSet) []model.ClassifiedEvent {
	events := make([]model.ClassifiedEvent, len(records))
	for i, rec := range records {
		side, makerAmt, takerAmt := classify(rec, contracts)
		events[i] = model.ClassifiedEvent{
			Record:      rec,
			Side:        side,
			MakerAmount: makerAmt,
			TakerAmount: takerAmt,
		}
	}
	return events
}

func classify(rec model.RawFillRecord, contracts model.ContractSet) (model.Side, decimal.Decimal, decimal.Decimal) {
	if strings.TrimSpace(rec.MakerAssetID) == "" || strings.TrimSpace(rec.TakerAssetID) == "" {
		return model.SideUnclassifiable, decimal.Zero, decimal.Zero
	}
	if rec.Timestamp.IsZero() {
		return model.SideUnclassifiable, decimal.Zero, decimal.Zero
	}
	makerAmt, ok := parseAmount(rec.MakerAmountFilled)
	if !ok {
		return model.SideUnclassifiable, decimal.Zero, decimal.Zero
	}
	takerAmt, ok := parseAmount(rec.TakerAmountFilled)
	if !ok {
		return model.SideUnclassifiable, decimal.Zero, decimal.Zero
	}

	if contracts.Contains(rec.Taker) {
		return model.SideTakerFocused, makerAmt, takerAmt
	}
	return model.SideMakerFocused, makerAmt, takerAmt
}

// parseAmount accepts non-negative decimal strings only.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}
