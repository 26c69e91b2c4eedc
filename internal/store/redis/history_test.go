package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"govlink/checkin-service/internal/checkin"

	"github.com/google/uuid"
)

func TestScanHistorySeenAndForget(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is required for redis tests")
	}
	client, err := NewClient(url)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	history := NewScanHistory(client, time.Minute)
	key := checkin.ScanKey("desk-"+uuid.NewString(), `{"reference":"GV-001"}`)
	t.Cleanup(func() { _ = history.Forget(context.Background(), key) })

	seen, err := history.Seen(ctx, key)
	if err != nil || seen {
		t.Fatalf("first scan: seen=%v err=%v", seen, err)
	}
	seen, err = history.Seen(ctx, key)
	if err != nil || !seen {
		t.Fatalf("second scan: seen=%v err=%v", seen, err)
	}
	if err := history.Forget(ctx, key); err != nil {
		t.Fatalf("forget: %v", err)
	}
	seen, err = history.For("desk-2").Seen(ctx, key)
	if err != nil || seen {
		t.Fatalf("after forget: seen=%v err=%v", seen, err)
	}
}

func TestScanHistoryEmptyKey(t *testing.T) {
	history := NewScanHistory(nil, 0)
	seen, err := history.Seen(context.Background(), "")
	if err != nil || seen {
		t.Fatalf("empty key should never be a duplicate: seen=%v err=%v", seen, err)
	}
	if history.ttl != defaultTTL {
		t.Fatalf("expected default ttl, got %s", history.ttl)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("not-a-url"); err == nil {
		t.Fatalf("expected parse error")
	}
}
