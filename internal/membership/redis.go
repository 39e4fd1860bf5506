// internal/membership/redis.go
package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	linkKeyPrefix    = "link:"
	paymentKeyPrefix = "payment:"
)

// RedisLinkageRegistry keeps the telegram → website mapping in Redis so it
// survives process restarts.
type RedisLinkageRegistry struct {
	rdb *redis.Client
}

func NewRedisLinkageRegistry(rdb *redis.Client) *RedisLinkageRegistry {
	return &RedisLinkageRegistry{rdb: rdb}
}

func linkKey(telegramUserID int64) string {
	return linkKeyPrefix + strconv.FormatInt(telegramUserID, 10)
}

func paymentKey(telegramUserID int64) string {
	return paymentKeyPrefix + strconv.FormatInt(telegramUserID, 10)
}

func (r *RedisLinkageRegistry) Link(ctx context.Context, telegramUserID int64, websiteUserID string) error {
	if err := r.rdb.Set(ctx, linkKey(telegramUserID), websiteUserID, 0).Err(); err != nil {
		return fmt.Errorf("link upsert: %w", err)
	}
	return nil
}

func (r *RedisLinkageRegistry) Lookup(ctx context.Context, telegramUserID int64) (string, bool, error) {
	val, err := r.rdb.Get(ctx, linkKey(telegramUserID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("link lookup: %w", err)
	}
	return val, true, nil
}

// RedisPaymentLedger stores one payment record per telegram user. SETNX
// keeps the duplicate check and the write atomic; GETDEL does the same for
// removal.
type RedisPaymentLedger struct {
	rdb *redis.Client
}

func NewRedisPaymentLedger(rdb *redis.Client) *RedisPaymentLedger {
	return &RedisPaymentLedger{rdb: rdb}
}

func (l *RedisPaymentLedger) Record(ctx context.Context, rec *PaymentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("payment marshal: %w", err)
	}

	stored, err := l.rdb.SetNX(ctx, paymentKey(rec.TelegramUserID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("payment record: %w", err)
	}
	if !stored {
		return ErrDuplicatePayment
	}
	return nil
}

func (l *RedisPaymentLedger) Get(ctx context.Context, telegramUserID int64) (*PaymentRecord, bool, error) {
	val, err := l.rdb.Get(ctx, paymentKey(telegramUserID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("payment get: %w", err)
	}

	var rec PaymentRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, false, fmt.Errorf("payment unmarshal: %w", err)
	}
	return &rec, true, nil
}

func (l *RedisPaymentLedger) Remove(ctx context.Context, telegramUserID int64) error {
	err := l.rdb.GetDel(ctx, paymentKey(telegramUserID)).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNoActivePayment
	}
	if err != nil {
		return fmt.Errorf("payment remove: %w", err)
	}
	return nil
}
