package service

import (
	"sort"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/shopspring/decimal"
)

// DayVolume holds the parallel volume computations for one UTC date.
//
// TakerOnly is the adopted, non-duplicated volume. NaiveSumAll adds the
// settlement leg of every event regardless of side and is kept to quantify
// the overcount. MakerOnly is the cross-check and should track TakerOnly
// modulo fee and rounding asymmetries. Excluded is every settlement leg left
// out of TakerOnly. Besides maker-focused events it takes taker-focused
// events whose settlement leg sits on the maker side, and unclassifiable
// events whose settlement amount still parses. NaiveSumAll always equals
// TakerOnly + Excluded.
//
// Unclassifiable events without a timestamp have no date and only reach the
// Reconciliation totals.
type DayVolume struct {
	Date        time.Time
	NaiveSumAll decimal.Decimal
	TakerOnly   decimal.Decimal
	MakerOnly   decimal.Decimal
	Excluded    decimal.Decimal

	TakerEvents          int
	MakerEvents          int
	UnclassifiableEvents int
}

// DoubleCountRatio returns NaiveSumAll / TakerOnly. The second return value
// is false when TakerOnly is zero and the ratio is undefined.
func (d DayVolume) DoubleCountRatio() (decimal.Decimal, bool) {
	return doubleCountRatio(d.NaiveSumAll, d.TakerOnly)
}

// Reconciliation is the result of folding classified events into per-day
// volumes. Days is sorted by date ascending.
type Reconciliation struct {
	Asset  model.SettlementAsset
	Days   []DayVolume
	Totals DayVolume
}

// DoubleCountRatio over the whole input.
func (r *Reconciliation) DoubleCountRatio() (decimal.Decimal, bool) {
	return r.Totals.DoubleCountRatio()
}

// VolumeByDay returns the taker-only volume keyed by UTC date.
func (r *Reconciliation) VolumeByDay() map[time.Time]decimal.Decimal {
	out := make(map[time.Time]decimal.Decimal, len(r.Days))
	for _, d := range r.Days {
		out[d.Date] = d.TakerOnly
	}
	return out
}

// Reconcile folds classified events into per-day volumes.
// Amounts are converted from raw units using the asset's decimals. The
// result does not depend on event order.
func Reconcile(events []model.ClassifiedEvent, asset model.SettlementAsset) *Reconciliation {
	days := make(map[time.Time]*DayVolume)
	totals := DayVolume{}

	dayFor := func(t time.Time) *DayVolume {
		key := model.DayKey(t)
		d, ok := days[key]
		if !ok {
			d = &DayVolume{Date: key}
			days[key] = d
		}
		return d
	}

	for _, ev := range events {
		if ev.Side == model.SideUnclassifiable {
			totals.UnclassifiableEvents++
			leg, hasLeg := rawSettlementLeg(ev.Record, asset)
			if hasLeg {
				totals.Excluded = totals.Excluded.Add(leg)
				totals.NaiveSumAll = totals.NaiveSumAll.Add(leg)
			}
			if !ev.Record.Timestamp.IsZero() {
				d := dayFor(ev.Record.Timestamp)
				d.UnclassifiableEvents++
				if hasLeg {
					d.Excluded = d.Excluded.Add(leg)
					d.NaiveSumAll = d.NaiveSumAll.Add(leg)
				}
			}
			continue
		}

		d := dayFor(ev.Record.Timestamp)
		leg, hasLeg := settlementLeg(ev, asset)

		switch ev.Side {
		case model.SideTakerFocused:
			d.TakerEvents++
			totals.TakerEvents++
			if ev.Record.TakerAssetID == asset.ID {
				amt := toUnits(ev.TakerAmount, asset)
				d.TakerOnly = d.TakerOnly.Add(amt)
				totals.TakerOnly = totals.TakerOnly.Add(amt)
			} else if hasLeg {
				d.Excluded = d.Excluded.Add(leg)
				totals.Excluded = totals.Excluded.Add(leg)
			}
		case model.SideMakerFocused:
			d.MakerEvents++
			totals.MakerEvents++
			if ev.Record.MakerAssetID == asset.ID {
				amt := toUnits(ev.MakerAmount, asset)
				d.MakerOnly = d.MakerOnly.Add(amt)
				totals.MakerOnly = totals.MakerOnly.Add(amt)
			}
			if hasLeg {
				d.Excluded = d.Excluded.Add(leg)
				totals.Excluded = totals.Excluded.Add(leg)
			}
		}

		if hasLeg {
			d.NaiveSumAll = d.NaiveSumAll.Add(leg)
			totals.NaiveSumAll = totals.NaiveSumAll.Add(leg)
		}
	}

	out := &Reconciliation{
		Asset:  asset,
		Days:   make([]DayVolume, 0, len(days)),
		Totals: totals,
	}
	for _, d := range days {
		out.Days = append(out.Days, *d)
	}
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Date.Before(out.Days[j].Date) })

	return out
}

// settlementLeg returns the amount exchanged in the settlement asset,
// preferring the taker side when both sides carry it.
func settlementLeg(ev model.ClassifiedEvent, asset model.SettlementAsset) (decimal.Decimal, bool) {
	switch asset.ID {
	case ev.Record.TakerAssetID:
		return toUnits(ev.TakerAmount, asset), true
	case ev.Record.MakerAssetID:
		return toUnits(ev.MakerAmount, asset), true
	}
	return decimal.Zero, false
}

// rawSettlementLeg is settlementLeg for records that failed classification.
// Only the settlement amount has to parse.
func rawSettlementLeg(rec model.RawFillRecord, asset model.SettlementAsset) (decimal.Decimal, bool) {
	if asset.ID == "" {
		return decimal.Zero, false
	}
	raw := ""
	switch asset.ID {
	case rec.TakerAssetID:
		raw = rec.TakerAmountFilled
	case rec.MakerAssetID:
		raw = rec.MakerAmountFilled
	default:
		return decimal.Zero, false
	}
	amt, ok := parseAmount(raw)
	if !ok {
		return decimal.Zero, false
	}
	return toUnits(amt, asset), true
}

func toUnits(raw decimal.Decimal, asset model.SettlementAsset) decimal.Decimal {
	if asset.Decimals == 0 {
		return raw
	}
	return raw.Shift(-asset.Decimals)
}

func doubleCountRatio(naive, correct decimal.Decimal) (decimal.Decimal, bool) {
	if correct.IsZero() {
		return decimal.Zero, false
	}
	return naive.Div(correct), true
}
