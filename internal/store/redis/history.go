package redis

import (
	"context"
	"time"

	"govlink/checkin-service/internal/checkin"

	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "checkin:scan:"
	defaultTTL = 30 * time.Second
)

// ScanHistory shares duplicate suppression between service instances. Keys
// expire after ttl; capacity is not bounded the way RecentScans is.
type ScanHistory struct {
	client goredis.Cmdable
	ttl    time.Duration
}

func NewScanHistory(client goredis.Cmdable, ttl time.Duration) *ScanHistory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ScanHistory{client: client, ttl: ttl}
}

// NewClient parses a redis:// URL into a client.
func NewClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func (h *ScanHistory) Seen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	stored, err := h.client.SetNX(ctx, keyPrefix+key, 1, h.ttl).Result()
	if err != nil {
		return false, err
	}
	return !stored, nil
}

func (h *ScanHistory) Forget(ctx context.Context, key string) error {
	return h.client.Del(ctx, keyPrefix+key).Err()
}

// For returns the shared history. Keys already carry the terminal id, so
// every terminal can use the same instance.
func (h *ScanHistory) For(string) checkin.ScanHistory {
	return h
}

var (
	_ checkin.ScanHistory     = (*ScanHistory)(nil)
	_ checkin.HistoryProvider = (*ScanHistory)(nil)
)
