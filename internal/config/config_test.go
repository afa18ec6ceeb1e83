package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evmarket/internal/domain"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadJSONWithDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"debug": true,
		"database": {"path": "data/ev.db"},
		"plans": {"yearly": 50000}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(50000), cfg.Plans.Price(domain.PlanYearly))
	assert.Equal(t, int64(4999), cfg.Plans.Price(domain.PlanMonthly))
	assert.Equal(t, int64(0), cfg.Plans.Price(domain.PlanNone))
	assert.Equal(t, domain.MaxPublishDays, cfg.Publish.MaxDays)
	assert.Equal(t, "mock", cfg.Payments.Provider)
	assert.Equal(t, "INR", cfg.Payments.Currency)
	assert.Len(t, cfg.Placements.Prices, len(domain.TargetPages))
	assert.Equal(t, "data/ev.db", cfg.GetDatabasePath())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
debug: true
server:
  host: 127.0.0.1
  port: 9090
database:
  path: ev.db
placements:
  prices:
    Home: 100
    Store: 50
kafka:
  brokers: ["k1:9092", "k2:9092"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Address())
	assert.Equal(t, map[string]int64{"Home": 100, "Store": 50}, cfg.Placements.Prices)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "evmarket.ads", cfg.Kafka.Topic)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"debug": true, "server": {"port": 9000}, "database": {"path": "file.db"}}`)

	t.Setenv("PORT", "7000")
	t.Setenv("DATABASE_PATH", "env.db")
	t.Setenv("PLAN_PRICE_YEARLY", "39999")
	t.Setenv("KAFKA_BROKERS", "a:1, b:2")
	t.Setenv("PUBLISH_MAX_DAYS", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, int64(39999), cfg.Plans.Yearly)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, domain.MaxPublishDays, cfg.Publish.MaxDays)
}

func TestMissingFileUsesEnv(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("DATABASE_PATH", "only-env.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "only-env.db", cfg.Database.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no database", `{"debug": true}`},
		{"production without secret", `{"database": {"path": "a.db"}, "payments": {"provider": "stripe", "stripeSecretKey": "sk"}}`},
		{"mock outside debug", `{"database": {"path": "a.db"}, "jwt": {"secret": "s3cret"}}`},
		{"stripe without key", `{"debug": true, "database": {"path": "a.db"}, "payments": {"provider": "stripe"}}`},
		{"unknown provider", `{"debug": true, "database": {"path": "a.db"}, "payments": {"provider": "cash"}}`},
		{"unknown page price", `{"debug": true, "database": {"path": "a.db"}, "placements": {"prices": {"Checkout": 10}}}`},
		{"bad port", `{"debug": true, "database": {"path": "a.db"}, "server": {"port": 70000}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.json", tt.body))
			assert.Error(t, err)
		})
	}
}

func TestMalformedFile(t *testing.T) {
	_, err := Load(writeFile(t, "config.json", `{not json`))
	assert.Error(t, err)
}
