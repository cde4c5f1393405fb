package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Environment: "dev",
		Oanda:       OandaConfig{Instruments: []string{"EUR/USD", "USD_JPY"}},
		Timeframes:  append([]TimeframeSpec(nil), DefaultTimeframes...),
		Aggregation: AggregationCfg{Location: "UTC"},
		Heartbeat:   HeartbeatConfig{Timeout: 30 * time.Second, CheckInterval: time.Second},
		Sink:        SinkConfig{Policy: PolicyBlock},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no instruments", func(c *Config) { c.Oanda.Instruments = nil }, "no instruments"},
		{"duplicate instrument", func(c *Config) { c.Oanda.Instruments = []string{"EUR/USD", "EUR_USD"} }, "configured twice"},
		{"unsupported granularity", func(c *Config) { c.Timeframes = []TimeframeSpec{{Minutes: 3, Label: "3m"}} }, "granularity"},
		{"duplicate label", func(c *Config) {
			c.Timeframes = []TimeframeSpec{{Minutes: 1, Label: "x"}, {Minutes: 5, Label: "x"}}
		}, "duplicate timeframe label"},
		{"default label clash", func(c *Config) {
			c.Timeframes = []TimeframeSpec{{Minutes: 1}, {Minutes: 5, Label: "1m"}}
		}, "duplicate timeframe label"},
		{"zero timeout", func(c *Config) { c.Heartbeat.Timeout = 0 }, "heartbeat timeout"},
		{"negative interval", func(c *Config) { c.Heartbeat.CheckInterval = -time.Second }, "check interval"},
		{"unknown policy", func(c *Config) { c.Sink.Policy = "spill" }, "unknown sink policy"},
		{"drop oldest", func(c *Config) { c.Sink.Policy = PolicyDropOldest }, ""},
		{"bad location", func(c *Config) { c.Aggregation.Location = "Mars/Olympus" }, "invalid aggregation location"},
		{"kafka without topic", func(c *Config) { c.Kafka = KafkaConfig{Enabled: true, Brokers: "b:9092"} }, "kafka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
environment: dev
oanda:
  account_id: "001-001-1234567-001"
  instruments: ["EUR_USD"]
timeframes:
  - minutes: 5
    label: "5m"
  - minutes: 60
    label: "H1"
heartbeat:
  timeout: 45s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("OANDA_INSTRUMENTS", "EUR_USD, USD_JPY,,GBP/USD")
	t.Setenv("SINK_POLICY", PolicyDropOldest)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"EUR_USD", "USD_JPY", "GBP/USD"}, cfg.Oanda.Instruments)
	assert.Equal(t, "001-001-1234567-001", cfg.Oanda.AccountID)
	assert.Equal(t, []TimeframeSpec{{Minutes: 5, Label: "5m"}, {Minutes: 60, Label: "H1"}}, cfg.Timeframes)
	assert.Equal(t, 45*time.Second, cfg.Heartbeat.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Heartbeat.CheckInterval)
	assert.Equal(t, PolicyDropOldest, cfg.Sink.Policy)
	assert.Equal(t, "dev", cfg.Log.Environment)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APIKEY", "secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeframes, cfg.Timeframes)
	assert.Equal(t, "secret", cfg.Oanda.APIKey)
	assert.Equal(t, "oanda", cfg.Oanda.Exchange)
	assert.Equal(t, PolicyBlock, cfg.Sink.Policy)
	assert.True(t, cfg.Sink.StoreTicks)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat.Timeout)
}

func TestDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5432, User: "u", Password: "p",
		DBName: "fxstream", SSLMode: "disable", TimeZone: "UTC",
	}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=fxstream sslmode=disable TimeZone=UTC", cfg.DSN("dev"))
	assert.Contains(t, cfg.AdminDSN("dev"), "dbname=postgres")
}

func TestTimeLocation(t *testing.T) {
	loc, err := AggregationCfg{}.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = AggregationCfg{Location: "Asia/Tokyo"}.TimeLocation()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}
