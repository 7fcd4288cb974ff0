package dto

import (
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
)

// DayVolumeDTO is one day of the persisted reconciliation history.
type DayVolumeDTO struct {
	Date                 string   `json:"date"`
	NaiveSumAll          float64  `json:"naive_sum_all"`
	TakerOnly            float64  `json:"taker_only"`
	MakerOnly            float64  `json:"maker_only"`
	ExcludedVolume       float64  `json:"excluded_volume"`
	DoubleCountRatio     *float64 `json:"double_count_ratio"`
	TakerFocusedEvents   int      `json:"taker_focused_events"`
	MakerFocusedEvents   int      `json:"maker_focused_events"`
	UnclassifiableEvents int      `json:"unclassifiable_events"`
}

func FromDayVolumes(days []service.DayVolume) []DayVolumeDTO {
	out := make([]DayVolumeDTO, 0, len(days))
	for _, d := range days {
		item := DayVolumeDTO{
			Date:                 d.Date.Format(dateLayout),
			NaiveSumAll:          Currency(d.NaiveSumAll),
			TakerOnly:            Currency(d.TakerOnly),
			MakerOnly:            Currency(d.MakerOnly),
			ExcludedVolume:       Currency(d.Excluded),
			TakerFocusedEvents:   d.TakerEvents,
			MakerFocusedEvents:   d.MakerEvents,
			UnclassifiableEvents: d.UnclassifiableEvents,
		}
		if ratio, ok := d.DoubleCountRatio(); ok {
			item.DoubleCountRatio = ptr(ratio.Round(4).InexactFloat64())
		}
		out = append(out, item)
	}
	return out
}
