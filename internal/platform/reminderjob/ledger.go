package reminderjob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ehr/carenotify/internal/domain/reminder"
)

// DefaultClaimTTL outlives the hour bucket a claim guards, with room for a
// late sweep on the next day boundary.
const DefaultClaimTTL = 25 * time.Hour

// Ledger records which reminder occurrences have already been dispatched.
// Claim reports true when the caller is the first to claim key.
type Ledger interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// OccurrenceKey identifies one slot of one schedule on one civil date.
func OccurrenceKey(scheduleID uuid.UUID, now time.Time, slot reminder.Slot) string {
	return fmt.Sprintf("reminder:%s:%s:%s", scheduleID, now.Format("2006-01-02"), slot.Key())
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu     sync.Mutex
	ttl    time.Duration
	claims map[string]time.Time
	now    func() time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &MemoryLedger{ttl: ttl, claims: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryLedger) Claim(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, exp := range l.claims {
		if now.After(exp) {
			delete(l.claims, k)
		}
	}
	if _, ok := l.claims[key]; ok {
		return false, nil
	}
	l.claims[key] = now.Add(l.ttl)
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.claims, key)
	l.mu.Unlock()
	return nil
}

// RedisLedger shares claims across processes with SETNX.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger connects to redisURL and verifies the connection.
func NewRedisLedger(redisURL string, ttl time.Duration) (*RedisLedger, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisLedgerFromClient(client, ttl), nil
}

func NewRedisLedgerFromClient(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
