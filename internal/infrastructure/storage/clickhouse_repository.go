package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
	"github.com/shopspring/decimal"
)

// ClickHouseRepository implements EventPersistence using ClickHouse as the
// backend database. It keeps an audit trail of classified fills and the
// parallel per-day totals of every run.
type ClickHouseRepository struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Username string
	Password string
	Timeout  int
}

func NewClickHouseRepository(cfg ClickHouseConfig) (*ClickHouseRepository, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Duration(cfg.Timeout) * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	// Check the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	// Ensure tables exist
	if err := createTablesIfNotExist(conn); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &ClickHouseRepository{conn: conn}, nil
}

var _ repository.EventPersistence = (*ClickHouseRepository)(nil)

func createTablesIfNotExist(conn driver.Conn) error {
	err := conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS fill_events (
			run_id String,
			source LowCardinality(String),
			transaction_id String,
			timestamp DateTime,
			maker String,
			taker String,
			maker_asset_id String,
			taker_asset_id String,
			maker_amount Decimal(38, 6),
			taker_amount Decimal(38, 6),
			side LowCardinality(String),
			inserted_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (source, timestamp, transaction_id)
	`)
	if err != nil {
		return err
	}

	// One row per run and day; reads take the latest run for each day
	return conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS daily_volume (
			run_id String,
			source LowCardinality(String),
			date Date,
			naive_sum_all Decimal(38, 6),
			taker_only Decimal(38, 6),
			maker_only Decimal(38, 6),
			excluded Decimal(38, 6),
			taker_events UInt32,
			maker_events UInt32,
			unclassifiable_events UInt32,
			computed_at DateTime64(3) DEFAULT now64(3)
		) ENGINE = ReplacingMergeTree(computed_at)
		ORDER BY (source, date)
	`)
}

// SaveFills writes classified fill events for one run in a single batch
func (r *ClickHouseRepository) SaveFills(ctx context.Context, runID, source string, events []model.ClassifiedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO fill_events (
			run_id, source, transaction_id, timestamp, maker, taker,
			maker_asset_id, taker_asset_id, maker_amount, taker_amount, side
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare fills batch: %w", err)
	}

	for _, ev := range events {
		rec := ev.Record
		if err := batch.Append(
			runID,
			source,
			rec.TransactionID,
			rec.Timestamp.UTC(),
			rec.Maker,
			rec.Taker,
			rec.MakerAssetID,
			rec.TakerAssetID,
			ev.MakerAmount,
			ev.TakerAmount,
			ev.Side.String(),
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append fill %s: %w", rec.TransactionID, err)
		}
	}

	return batch.Send()
}

// SaveDailyVolumes writes the per-day totals computed by one run
func (r *ClickHouseRepository) SaveDailyVolumes(ctx context.Context, runID, source string, days []service.DayVolume) error {
	if len(days) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO daily_volume (
			run_id, source, date, naive_sum_all, taker_only, maker_only, excluded,
			taker_events, maker_events, unclassifiable_events
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare daily volume batch: %w", err)
	}

	for _, d := range days {
		if err := batch.Append(
			runID,
			source,
			d.Date,
			d.NaiveSumAll,
			d.TakerOnly,
			d.MakerOnly,
			d.Excluded,
			uint32(d.TakerEvents),
			uint32(d.MakerEvents),
			uint32(d.UnclassifiableEvents),
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append day %s: %w", d.Date.Format(time.DateOnly), err)
		}
	}

	return batch.Send()
}

// GetDailyVolumesSince returns the totals of the most recent run for each day on or after since
func (r *ClickHouseRepository) GetDailyVolumesSince(ctx context.Context, source string, since time.Time) ([]service.DayVolume, error) {
	query := `
		SELECT
			date,
			argMax(naive_sum_all, computed_at),
			argMax(taker_only, computed_at),
			argMax(maker_only, computed_at),
			argMax(excluded, computed_at),
			argMax(taker_events, computed_at),
			argMax(maker_events, computed_at),
			argMax(unclassifiable_events, computed_at)
		FROM daily_volume
		WHERE source = ? AND date >= toDate(?)
		GROUP BY date
		ORDER BY date
	`

	rows, err := r.conn.Query(ctx, query, source, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []service.DayVolume
	for rows.Next() {
		var (
			d                                 service.DayVolume
			naive, taker, maker, excluded     decimal.Decimal
			takerEvents, makerEvents, unclass uint32
		)
		if err := rows.Scan(
			&d.Date,
			&naive,
			&taker,
			&maker,
			&excluded,
			&takerEvents,
			&makerEvents,
			&unclass,
		); err != nil {
			return nil, err
		}
		d.Date = model.DayKey(d.Date)
		d.NaiveSumAll, d.TakerOnly, d.MakerOnly, d.Excluded = naive, taker, maker, excluded
		d.TakerEvents, d.MakerEvents, d.UnclassifiableEvents = int(takerEvents), int(makerEvents), int(unclass)
		results = append(results, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (r *ClickHouseRepository) Close() error {
	return r.conn.Close()
}
