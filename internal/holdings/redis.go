package holdings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Marker and hash are touched by one script so a crash can never leave a
// marker without its increment.
var incrementScript = redis.NewScript(`
if redis.call('SET', KEYS[2], '1', 'NX', 'EX', ARGV[3]) then
	redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

// RedisIndex stores each user's holdings in a hash at holdings:user:<id>.
type RedisIndex struct {
	client    redis.UniversalClient
	logger    *zap.Logger
	markerTTL time.Duration
}

// NewRedisIndex creates a Redis-backed index. markerTTL bounds how long
// purchase ids are remembered for deduplication.
func NewRedisIndex(client redis.UniversalClient, markerTTL time.Duration, logger *zap.Logger) *RedisIndex {
	if markerTTL <= 0 {
		markerTTL = 30 * 24 * time.Hour
	}
	return &RedisIndex{client: client, logger: logger, markerTTL: markerTTL}
}

func userKey(userID string) string {
	return "holdings:user:" + userID
}

func markerKey(purchaseID string) string {
	return "holdings:applied:" + purchaseID
}

func (r *RedisIndex) Increment(ctx context.Context, purchaseID, userID, assetID string, units int64) (bool, error) {
	if err := validateIncrement(purchaseID, userID, assetID, units); err != nil {
		return false, err
	}

	res, err := incrementScript.Run(ctx, r.client,
		[]string{userKey(userID), markerKey(purchaseID)},
		assetID, units, int64(r.markerTTL/time.Second),
	).Int()
	if err != nil {
		metrics.IndexWrites.WithLabelValues("increment", "error").Inc()
		return false, fmt.Errorf("failed to increment holdings: %w", err)
	}

	if res == 0 {
		metrics.IndexWrites.WithLabelValues("increment", "duplicate").Inc()
		r.logger.Debug("Holdings increment already applied",
			zap.String("purchase_id", purchaseID),
			zap.String("user_id", userID))
		return false, nil
	}
	metrics.IndexWrites.WithLabelValues("increment", "success").Inc()
	return true, nil
}

func (r *RedisIndex) Get(ctx context.Context, userID string) (map[string]int64, error) {
	raw, err := r.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read holdings: %w", err)
	}

	out := make(map[string]int64, len(raw))
	for assetID, v := range raw {
		units, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse holdings of asset %s: %w", assetID, err)
		}
		if units != 0 {
			out[assetID] = units
		}
	}
	return out, nil
}

func (r *RedisIndex) Set(ctx context.Context, userID, assetID string, units int64) error {
	if units < 0 {
		return fmt.Errorf("%w: cannot set %d units", ErrInvalidUnits, units)
	}

	var err error
	if units == 0 {
		err = r.client.HDel(ctx, userKey(userID), assetID).Err()
	} else {
		err = r.client.HSet(ctx, userKey(userID), assetID, units).Err()
	}
	if err != nil {
		metrics.IndexWrites.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("failed to set holdings: %w", err)
	}
	metrics.IndexWrites.WithLabelValues("set", "success").Inc()
	return nil
}

func (r *RedisIndex) MarkApplied(ctx context.Context, purchaseID string) error {
	if purchaseID == "" {
		return fmt.Errorf("%w: purchase id is required", ErrInvalidUnits)
	}
	if err := r.client.Set(ctx, markerKey(purchaseID), "1", r.markerTTL).Err(); err != nil {
		metrics.IndexWrites.WithLabelValues("mark", "error").Inc()
		return fmt.Errorf("failed to mark purchase applied: %w", err)
	}
	metrics.IndexWrites.WithLabelValues("mark", "success").Inc()
	return nil
}
