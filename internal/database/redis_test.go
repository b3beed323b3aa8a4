package database

import "testing"

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		workers  int
		wantPool int
	}{
		{"default pool grows for workers", "redis://localhost:6379/2", 3, 3 + queueHeadroom},
		{"larger configured pool kept", "redis://localhost:6379/2?pool_size=50", 3, 50},
		{"small configured pool grown", "redis://localhost:6379/2?pool_size=2", 8, 8 + queueHeadroom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue, pubsub, err := redisOptions(tt.url, tt.workers)
			if err != nil {
				t.Fatalf("redisOptions: %v", err)
			}
			if queue.PoolSize != tt.wantPool {
				t.Fatalf("queue pool size = %d, want %d", queue.PoolSize, tt.wantPool)
			}
			if queue.ClientName != queueClientName || pubsub.ClientName != pubsubClientName {
				t.Fatalf("unexpected client names %q / %q", queue.ClientName, pubsub.ClientName)
			}
			if queue.DB != 2 || pubsub.DB != 2 || pubsub.Addr != queue.Addr {
				t.Fatalf("both roles must target the same database")
			}
		})
	}
}

func TestRedisOptions_InvalidURL(t *testing.T) {
	if _, _, err := redisOptions("not-a-redis-url", 3); err == nil {
		t.Fatalf("expected an error for a malformed URL")
	}
}
