package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/heladeria/internal/core/domain"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
	salesBoardKey        = "sales:board"
	salesAppliedPrefix   = "sales:applied:"
	appliedEventTTL      = 7 * 24 * time.Hour
)

// applySaleScript sets the event marker KEYS[2] with a TTL of ARGV[1]
// seconds and applies every (member, increment) pair after it only if the
// marker did not exist.
var applySaleScript = redis.NewScript(`
local added = redis.call('SET', KEYS[2], 1, 'NX', 'EX', ARGV[1])
if not added then
	return 0
end

for i = 2, #ARGV, 2 do
	redis.call('ZINCRBY', KEYS[1], ARGV[i + 1], ARGV[i])
end

return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func appliedEventKey(eventID string) string {
	return salesAppliedPrefix + eventID
}

// Apply adds the event's deltas to the board once. Event markers expire
// after appliedEventTTL, long past any redelivery.
func (r *RedisAdapter) Apply(ctx context.Context, event domain.SaleEvent) (bool, error) {
	args := make([]any, 0, 1+2*len(event.Lines))
	args = append(args, int64(appliedEventTTL/time.Second))
	for _, l := range event.Lines {
		args = append(args, l.ProductID, l.Quantity)
	}

	keys := []string{salesBoardKey, appliedEventKey(event.ID)}
	result, err := applySaleScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("apply sale %s: %w", event.ID, err)
	}

	return result == 1, nil
}

func (r *RedisAdapter) Top(ctx context.Context, n int) ([]domain.ProductSales, error) {
	zs, err := r.client.ZRevRangeByScoreWithScores(ctx, salesBoardKey, &redis.ZRangeBy{
		Min:   "(0",
		Max:   "+inf",
		Count: int64(n),
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.ProductSales, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, domain.ProductSales{ProductID: id, TotalSold: int(z.Score)})
	}
	return out, nil
}

func (r *RedisAdapter) Reset(ctx context.Context, tallies []domain.ProductSales) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, salesBoardKey)
		if len(tallies) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(tallies))
		for _, t := range tallies {
			members = append(members, redis.Z{Score: float64(t.TotalSold), Member: t.ProductID})
		}
		pipe.ZAdd(ctx, salesBoardKey, members...)
		return nil
	})
	return err
}

// Count returns the tally of one product, for diagnostics.
func (r *RedisAdapter) Count(ctx context.Context, productID string) (int, error) {
	s, err := r.client.ZScore(ctx, salesBoardKey, productID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(s), nil
}
