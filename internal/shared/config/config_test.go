package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const fullConfig = `database:
  host: db.internal
  port: 5433
  user: orders
  password: secret
  database: food_orders
  pool_size: 20

rabbitmq:
  host: mq.internal
  port: 5673
  user: app
  password: apppass

redis:
  host: cache.internal
  port: 6380
  ttl_seconds: 120

pricing:
  url: http://pricing.internal:5001
  timeout_seconds: 5
`

func TestLoadFromFileFull(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 5433 || cfg.Database.PoolSize != 20 {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.RabbitMQ.Host != "mq.internal" || cfg.RabbitMQ.Port != 5673 {
		t.Fatalf("unexpected rabbitmq config: %+v", cfg.RabbitMQ)
	}
	if cfg.Redis.Host != "cache.internal" || cfg.Redis.TTLSeconds != 120 {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Pricing.URL != "http://pricing.internal:5001" || cfg.Pricing.TimeoutSeconds != 5 {
		t.Fatalf("unexpected pricing config: %+v", cfg.Pricing)
	}
}

func TestLoadFromFileDefaults(t *testing.T) {
	minimal := `database:
  user: orders
  password: secret
  database: food_orders

rabbitmq:
  user: guest
  password: guest
`
	cfg, err := LoadFromFile(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 || cfg.Database.PoolSize != 10 {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.RabbitMQ.Port != 5672 {
		t.Fatalf("unexpected rabbitmq defaults: %+v", cfg.RabbitMQ)
	}
	if cfg.Redis.Port != 6379 || cfg.Redis.TTLSeconds != 300 {
		t.Fatalf("unexpected redis defaults: %+v", cfg.Redis)
	}
	if cfg.Pricing.URL != "http://localhost:5001" || cfg.Pricing.TimeoutSeconds != 3 {
		t.Fatalf("unexpected pricing defaults: %+v", cfg.Pricing)
	}
}

func TestLoadFromFileStripsComments(t *testing.T) {
	commented := `# main config
database:
  user: orders   # service account
  password: secret
  database: food_orders

rabbitmq:
  user: guest
  password: guest
`
	cfg, err := LoadFromFile(writeConfig(t, commented))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.User != "orders" {
		t.Fatalf("expected comment stripped from value, got %q", cfg.Database.User)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantSub string
	}{
		{
			name:    "unknown top-level key",
			content: "mystery:\n  key: value\n",
			wantSub: "unknown top-level key",
		},
		{
			name:    "key without section",
			content: "  host: localhost\n",
			wantSub: "key without a section",
		},
		{
			name:    "non-integer port",
			content: "database:\n  port: eighty\n",
			wantSub: "must be int",
		},
		{
			name: "missing credentials",
			content: `database:
  database: food_orders

rabbitmq:
  user: guest
  password: guest
`,
			wantSub: "database.user is required",
		},
		{
			name: "bad pricing url",
			content: `database:
  user: orders
  password: secret
  database: food_orders

rabbitmq:
  user: guest
  password: guest

pricing:
  url: pricing.internal
`,
			wantSub: "pricing.url",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error containing %q, got %v", tc.wantSub, err)
			}
		})
	}
}

func TestLoadFromFileMissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
