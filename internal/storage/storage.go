// Package storage persists scrape results: menu rows, per-store menu
// statistics and a scraping log.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// Sink receives the output of one scrape. Menu rows are keyed by
// (store_id, naver_store_id, menu_name), statistics by
// (store_id, naver_store_id).
type Sink interface {
	// StartLog records a pending scrape and returns its log id.
	StartLog(ctx context.Context, storeID int64, naverID string) (int64, error)

	// SaveMenus upserts records and returns how many were stored. A row
	// that fails is logged and left out of the count.
	SaveMenus(ctx context.Context, storeID int64, naverID string, records []menu.Record) (int, error)

	// SaveStats upserts the aggregate statistics of a store.
	SaveStats(ctx context.Context, storeID int64, naverID string, stats menu.Stats) error

	// CompleteLog closes a log entry as success or failed.
	CompleteLog(ctx context.Context, logID int64, menuCount int, success bool, errMsg string) error

	// Close releases resources.
	Close() error
}

// Log statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ScrapingTypeMenu is the scraping_type of menu scrapes.
const ScrapingTypeMenu = "menu"

// ErrUnknownLog is returned when completing a log id that was never started.
var ErrUnknownLog = errors.New("unknown scraping log")

// Config holds PostgreSQL connection settings. URL, when set, is used as
// the connection string as-is.
type Config struct {
	URL            string        `mapstructure:"url" validate:"omitempty,url"`
	Host           string        `mapstructure:"host" validate:"required_without=URL"`
	Port           int           `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User           string        `mapstructure:"user" validate:"required_without=URL"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database" validate:"required_without=URL"`
	SSLMode        string        `mapstructure:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	ConnectRetries int           `mapstructure:"connect_retries" validate:"min=0,max=100"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" validate:"min=0"`
	MaxOpenConns   int           `mapstructure:"max_open_conns" validate:"min=0"`
}

// DefaultConfig returns settings for a local development database.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           5432,
		User:           "postgres",
		Database:       "menuscrape",
		SSLMode:        "disable",
		ConnectRetries: 5,
		RetryDelay:     2 * time.Second,
		MaxOpenConns:   4,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}
	return nil
}

// DSN returns the lib/pq connection string.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	parts := []string{
		"host=" + quoteDSN(c.Host),
		"user=" + quoteDSN(c.User),
		"dbname=" + quoteDSN(c.Database),
	}
	if c.Port != 0 {
		parts = append(parts, "port="+strconv.Itoa(c.Port))
	}
	if c.Password != "" {
		parts = append(parts, "password="+quoteDSN(c.Password))
	}
	if c.SSLMode != "" {
		parts = append(parts, "sslmode="+c.SSLMode)
	}
	return strings.Join(parts, " ")
}

// quoteDSN quotes a key/value connection string value when needed.
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
