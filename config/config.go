package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"` // "dev" or "prod"
	Oanda       OandaConfig     `mapstructure:"oanda"`
	Timeframes  []TimeframeSpec `mapstructure:"timeframes"`
	Aggregation AggregationCfg  `mapstructure:"aggregation"`
	Heartbeat   HeartbeatConfig `mapstructure:"heartbeat"`
	Sink        SinkConfig      `mapstructure:"sink"`
	Log         LogConfig       `mapstructure:"log"`
	Postgres    PostgresConfig  `mapstructure:"postgres"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	Server      ServerConfig    `mapstructure:"server"`
}

type OandaConfig struct {
	Exchange    string        `mapstructure:"exchange"`
	StreamURL   string        `mapstructure:"stream_url"`
	AccountID   string        `mapstructure:"account_id"`
	APIKey      string        `mapstructure:"api_key"`
	APIKeyParam string        `mapstructure:"api_key_param"` // SSM parameter holding the API key (prod)
	Instruments []string      `mapstructure:"instruments"`   // canonical ("EUR/USD") or native ("EUR_USD")
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// TimeframeSpec is one configured candle width.
type TimeframeSpec struct {
	Minutes int    `mapstructure:"minutes"`
	Label   string `mapstructure:"label"`
}

type AggregationCfg struct {
	Location string `mapstructure:"location"` // IANA zone used for bucket alignment
}

type HeartbeatConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

type SinkConfig struct {
	QueueSize    int           `mapstructure:"queue_size"`
	Policy       string        `mapstructure:"policy"` // "block" or "drop_oldest"
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	StoreTicks   bool          `mapstructure:"store_ticks"`
}

type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

const (
	PolicyBlock      = "block"
	PolicyDropOldest = "drop_oldest"
)

// DefaultTimeframes is used when no timeframe list is configured.
var DefaultTimeframes = []TimeframeSpec{
	{Minutes: 1, Label: "1m"},
	{Minutes: 5, Label: "5m"},
	{Minutes: 10, Label: "10m"},
	{Minutes: 15, Label: "15m"},
	{Minutes: 30, Label: "30m"},
	{Minutes: 60, Label: "1h"},
	{Minutes: 120, Label: "2h"},
	{Minutes: 240, Label: "4h"},
	{Minutes: 360, Label: "6h"},
	{Minutes: 720, Label: "12h"},
	{Minutes: 1440, Label: "1d"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("oanda.exchange", "oanda")
	v.SetDefault("oanda.stream_url", "https://stream-fxtrade.oanda.com")
	v.SetDefault("oanda.account_id", "")
	v.SetDefault("oanda.api_key", "")
	v.SetDefault("oanda.api_key_param", "")
	v.SetDefault("oanda.instruments", []string{})
	v.SetDefault("oanda.dial_timeout", 10*time.Second)

	v.SetDefault("aggregation.location", "UTC")

	v.SetDefault("heartbeat.timeout", 30*time.Second)
	v.SetDefault("heartbeat.check_interval", 5*time.Second)

	v.SetDefault("sink.queue_size", 4096)
	v.SetDefault("sink.policy", PolicyBlock)
	v.SetDefault("sink.write_timeout", 2*time.Second)
	v.SetDefault("sink.store_ticks", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_file", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "fxstream")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.ssm_prefix", "/fxstream/db")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "fxstream_candles")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")
}

// Load loads application configuration using Viper.
// It reads .env files, an optional config.yaml from the given directories
// and overrides with environment variables (e.g. OANDA_API_KEY).
func Load(paths ...string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	// Support environment variables with dot notation (e.g., OANDA_STREAM_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// names used by the OANDA sample .env files
	_ = v.BindEnv("oanda.api_key", "OANDA_API_KEY", "APIKEY")
	_ = v.BindEnv("oanda.account_id", "OANDA_ACCOUNT_ID", "ACCOUNTID")
	_ = v.BindEnv("oanda.instruments", "OANDA_INSTRUMENTS", "INSTRUMENTS")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = append([]TimeframeSpec(nil), DefaultTimeframes...)
	}
	cfg.Oanda.Instruments = splitInstruments(cfg.Oanda.Instruments)
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.Environment
	}

	return &cfg, nil
}

// splitInstruments flattens comma separated entries and drops blanks, keeping order.
func splitInstruments(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, s := range strings.Split(entry, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// TimeLocation resolves the aggregation time zone.
func (c AggregationCfg) TimeLocation() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid aggregation location %q: %w", c.Location, err)
	}
	return loc, nil
}
