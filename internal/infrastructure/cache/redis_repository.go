package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/repository"
	"github.com/redis/go-redis/v9"
)

const reportKeyPrefix = "volume:report:"

// RedisRepository implements the ReportCache interface using Redis as the backend
// It keeps the last-known-good report per venue, without expiry
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(addr, password string, db int) *RedisRepository {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRepository{client: client}
}

// Ensure RedisRepository implements the ReportCache interface
var _ repository.ReportCache = (*RedisRepository)(nil)

func reportKey(source string) string {
	return reportKeyPrefix + strings.ToLower(source)
}

// Ping checks that the server is reachable
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) SaveReport(ctx context.Context, report *dto.ReportDTO) error {
	if report == nil {
		return fmt.Errorf("cannot cache nil report")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return r.client.Set(ctx, reportKey(report.Source), data, 0).Err()
}

func (r *RedisRepository) GetReport(ctx context.Context, source string) (*dto.ReportDTO, error) {
	data, err := r.client.Get(ctx, reportKey(source)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var report dto.ReportDTO
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &report, nil
}

// Sources lists the venues that have a cached report, sorted by name
func (r *RedisRepository) Sources(ctx context.Context) ([]string, error) {
	keys, err := r.client.Keys(ctx, reportKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(keys))
	for _, key := range keys {
		sources = append(sources, strings.TrimPrefix(key, reportKeyPrefix))
	}
	sort.Strings(sources)

	return sources, nil
}
