package config

import (
	"fmt"
)

// DatabaseConfig holds PostgreSQL database configuration, used when the
// identity binding is stored in postgres
type DatabaseConfig struct {
	Host     string `env:"FUZZBIN_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"FUZZBIN_PG_PORT" env-default:"5432"`
	Database string `env:"FUZZBIN_PG_DATABASE" env-default:"fuzzbin_db"`
	User     string `env:"FUZZBIN_PG_USER" env-default:"fuzzbin"`
	Password string `env:"FUZZBIN_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"FUZZBIN_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}
