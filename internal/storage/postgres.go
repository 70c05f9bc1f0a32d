package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// Postgres persists scrape results to PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects with cfg, waits for the server to answer and
// creates the tables it writes to.
func OpenPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := ping(ctx, db, cfg.ConnectRetries, cfg.RetryDelay); err != nil {
		db.Close()
		return nil, err
	}

	p := NewPostgres(db)
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return p, nil
}

// NewPostgres wraps an already open database. The schema is assumed to
// exist.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func ping(ctx context.Context, db *sql.DB, retries int, delay time.Duration) error {
	var err error
	for i := 0; i <= retries; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if i == retries {
			break
		}
		logger.Debug("database not ready", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("postgres: ping failed after %d retries: %w", retries, err)
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS naver_menus (
			id                SERIAL PRIMARY KEY,
			store_id          BIGINT       NOT NULL,
			naver_store_id    VARCHAR(64)  NOT NULL,
			menu_name         TEXT         NOT NULL,
			menu_price        INTEGER,
			menu_description  TEXT,
			menu_category     TEXT,
			menu_image_url    TEXT,
			menu_rating       NUMERIC(3,2),
			menu_review_count INTEGER      NOT NULL DEFAULT 0,
			is_popular        BOOLEAN      NOT NULL DEFAULT FALSE,
			is_signature      BOOLEAN      NOT NULL DEFAULT FALSE,
			naver_menu_id     TEXT,
			scraped_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (store_id, naver_store_id, menu_name)
		);

		CREATE TABLE IF NOT EXISTS naver_menu_stats (
			id                   SERIAL PRIMARY KEY,
			store_id             BIGINT      NOT NULL,
			naver_store_id       VARCHAR(64) NOT NULL,
			total_menus          INTEGER     NOT NULL DEFAULT 0,
			avg_price            NUMERIC(10,2),
			min_price            INTEGER,
			max_price            INTEGER,
			popular_menu_count   INTEGER     NOT NULL DEFAULT 0,
			signature_menu_count INTEGER     NOT NULL DEFAULT 0,
			last_scraped_at      TIMESTAMPTZ,
			scraped_success      BOOLEAN     NOT NULL DEFAULT FALSE,
			error_message        TEXT,
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (store_id, naver_store_id)
		);

		CREATE TABLE IF NOT EXISTS naver_scraping_logs (
			id                 SERIAL PRIMARY KEY,
			store_id           BIGINT      NOT NULL,
			naver_store_id     VARCHAR(64) NOT NULL,
			scraping_type      VARCHAR(32) NOT NULL,
			status             VARCHAR(16) NOT NULL,
			menu_count         INTEGER     NOT NULL DEFAULT 0,
			started_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at       TIMESTAMPTZ,
			processing_time_ms INTEGER,
			error_message      TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_naver_menus_store ON naver_menus(store_id);
		CREATE INDEX IF NOT EXISTS idx_naver_logs_store  ON naver_scraping_logs(store_id, started_at);
	`)
	return err
}

// StartLog inserts a pending scraping log.
func (p *Postgres) StartLog(ctx context.Context, storeID int64, naverID string) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO naver_scraping_logs (store_id, naver_store_id, scraping_type, status, started_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id
	`, storeID, naverID, ScrapingTypeMenu, StatusPending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: start log: %w", err)
	}
	return id, nil
}

const upsertMenu = `
	INSERT INTO naver_menus (
		store_id, naver_store_id, menu_name, menu_price, menu_description,
		menu_category, menu_image_url, menu_rating, menu_review_count,
		is_popular, is_signature, naver_menu_id, scraped_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (store_id, naver_store_id, menu_name) DO UPDATE SET
		menu_price        = EXCLUDED.menu_price,
		menu_description  = EXCLUDED.menu_description,
		menu_category     = EXCLUDED.menu_category,
		menu_image_url    = EXCLUDED.menu_image_url,
		menu_rating       = EXCLUDED.menu_rating,
		menu_review_count = EXCLUDED.menu_review_count,
		is_popular        = EXCLUDED.is_popular,
		is_signature      = EXCLUDED.is_signature,
		naver_menu_id     = EXCLUDED.naver_menu_id,
		scraped_at        = EXCLUDED.scraped_at,
		updated_at        = NOW()
`

// menuArgs maps a record onto the placeholders of upsertMenu.
func menuArgs(storeID int64, naverID string, r menu.Record, scrapedAt time.Time) []any {
	return []any{
		storeID,
		naverID,
		r.Name,
		nullInt(r.Price),
		nullString(r.Description),
		nullString(r.Category),
		nullString(r.ImageURL),
		nullFloat(r.Rating),
		r.ReviewCount,
		r.IsPopular,
		r.IsSignature,
		r.SourceID,
		scrapedAt,
	}
}

// SaveMenus upserts records in one transaction. Each row runs under a
// savepoint so one bad row does not abort the rest.
func (p *Postgres) SaveMenus(ctx context.Context, storeID int64, naverID string, records []menu.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	log := logger.ForStore(fmt.Sprint(storeID), naverID)
	now := time.Now()
	saved := 0
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT menu_row"); err != nil {
			return saved, fmt.Errorf("postgres: savepoint: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upsertMenu, menuArgs(storeID, naverID, r, now)...); err != nil {
			log.Warn("menu row not saved", "menu", r.Name, "error", err)
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT menu_row"); err != nil {
				return saved, fmt.Errorf("postgres: rollback savepoint: %w", err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT menu_row"); err != nil {
			return saved, fmt.Errorf("postgres: release savepoint: %w", err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return saved, nil
}

// SaveStats upserts the statistics row of a store and clears any previous
// error message.
func (p *Postgres) SaveStats(ctx context.Context, storeID int64, naverID string, stats menu.Stats) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO naver_menu_stats (
			store_id, naver_store_id, total_menus, avg_price, min_price, max_price,
			popular_menu_count, signature_menu_count, last_scraped_at, scraped_success
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), TRUE)
		ON CONFLICT (store_id, naver_store_id) DO UPDATE SET
			total_menus          = EXCLUDED.total_menus,
			avg_price            = EXCLUDED.avg_price,
			min_price            = EXCLUDED.min_price,
			max_price            = EXCLUDED.max_price,
			popular_menu_count   = EXCLUDED.popular_menu_count,
			signature_menu_count = EXCLUDED.signature_menu_count,
			last_scraped_at      = EXCLUDED.last_scraped_at,
			scraped_success      = TRUE,
			error_message        = NULL,
			updated_at           = NOW()
	`, storeID, naverID, stats.Total, nullFloat(stats.AvgPrice), nullInt(stats.MinPrice),
		nullInt(stats.MaxPrice), stats.Popular, stats.Signature)
	if err != nil {
		return fmt.Errorf("postgres: save stats: %w", err)
	}
	return nil
}

// CompleteLog closes a scraping log and records its processing time.
func (p *Postgres) CompleteLog(ctx context.Context, logID int64, menuCount int, success bool, errMsg string) error {
	status := StatusFailed
	if success {
		status = StatusSuccess
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE naver_scraping_logs SET
			status             = $1,
			menu_count         = $2,
			completed_at       = NOW(),
			processing_time_ms = (EXTRACT(EPOCH FROM (NOW() - started_at)) * 1000)::INTEGER,
			error_message      = $3
		WHERE id = $4
	`, status, menuCount, sql.NullString{String: errMsg, Valid: errMsg != ""}, logID)
	if err != nil {
		return fmt.Errorf("postgres: complete log: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("postgres: complete log %d: %w", logID, ErrUnknownLog)
	}
	return nil
}

// Close closes the database.
func (p *Postgres) Close() error {
	if p.db == nil {
		return errors.New("postgres: not open")
	}
	return p.db.Close()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
