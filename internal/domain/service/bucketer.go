package service

import (
	"sort"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/shopspring/decimal"
)

// BucketDaily groups volumes by UTC calendar date, ascending.
// Keys that fall on the same date are summed.
func BucketDaily(volumeByDay map[time.Time]decimal.Decimal) []model.DailyBucket {
	grouped := make(map[time.Time]decimal.Decimal, len(volumeByDay))
	for t, v := range volumeByDay {
		key := model.DayKey(t)
		grouped[key] = grouped[key].Add(v)
	}

	buckets := make([]model.DailyBucket, 0, len(grouped))
	for date, v := range grouped {
		buckets = append(buckets, model.DailyBucket{Date: date, Volume: v})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date.Before(buckets[j].Date) })
	return buckets
}

// BucketWeekly rolls daily buckets into ISO weeks keyed by their Monday.
// Only weeks containing at least one daily bucket are emitted.
func BucketWeekly(daily []model.DailyBucket) []model.WeeklyBucket {
	grouped := make(map[time.Time]decimal.Decimal)
	for _, d := range daily {
		key := WeekStart(d.Date)
		grouped[key] = grouped[key].Add(d.Volume)
	}

	buckets := make([]model.WeeklyBucket, 0, len(grouped))
	for start, v := range grouped {
		buckets = append(buckets, model.WeeklyBucket{WeekStart: start, Volume: v})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].WeekStart.Before(buckets[j].WeekStart) })
	return buckets
}

// WeekStart returns the Monday (UTC midnight) of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	day := model.DayKey(t)
	// Monday = 0 ... Sunday = 6
	idx := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -idx)
}

// LatestDaily keeps the last n buckets. n <= 0 keeps everything.
func LatestDaily(buckets []model.DailyBucket, n int) []model.DailyBucket {
	if n <= 0 || len(buckets) <= n {
		return buckets
	}
	return buckets[len(buckets)-n:]
}

// LatestWeekly keeps the last n buckets. n <= 0 keeps everything.
func LatestWeekly(buckets []model.WeeklyBucket, n int) []model.WeeklyBucket {
	if n <= 0 || len(buckets) <= n {
		return buckets
	}
	return buckets[len(buckets)-n:]
}
