package config

import (
	"context"
	"fmt"
	"time"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	// SSMPrefix is the Parameter Store path holding host/user/password in prod.
	SSMPrefix string `mapstructure:"ssm_prefix"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds a lib/pq style connection string for the named database.
// In prod the host and credentials come from SSM under SSMPrefix.
func (cfg *PostgresConfig) DSN(env string) string {
	return cfg.dsnFor(env, cfg.DBName)
}

// AdminDSN targets the maintenance "postgres" database, used to create DBName.
func (cfg *PostgresConfig) AdminDSN(env string) string {
	return cfg.dsnFor(env, "postgres")
}

func (cfg *PostgresConfig) dsnFor(env, dbName string) string {
	host, user, password := cfg.Host, cfg.User, cfg.Password

	if env == "prod" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		host = parameterOrDefault(ctx, cfg.SSMPrefix+"/host", host)
		user = parameterOrDefault(ctx, cfg.SSMPrefix+"/user", user)
		password = parameterOrDefault(ctx, cfg.SSMPrefix+"/password", password)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbName, cfg.SSLMode,
	)

	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}

	return dsn
}

func parameterOrDefault(ctx context.Context, name, fallback string) string {
	v, err := GetParameterStoreValue(ctx, name, true)
	if err != nil || v == "" {
		return fallback
	}
	return v
}
