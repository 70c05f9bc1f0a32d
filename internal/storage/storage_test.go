package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// --- Config Tests ---

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "p@ss word"

	dsn := cfg.DSN()
	for _, want := range []string{"host=localhost", "port=5432", "user=postgres", "dbname=menuscrape", "sslmode=disable", `password='p@ss word'`} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN() = %q, missing %q", dsn, want)
		}
	}
}

func TestConfig_DSNPrefersURL(t *testing.T) {
	cfg := Config{URL: "postgres://u:p@db:5432/menus?sslmode=disable"}
	if cfg.DSN() != cfg.URL {
		t.Errorf("DSN() = %q, want the URL", cfg.DSN())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestQuoteDSN(t *testing.T) {
	tests := map[string]string{
		"plain":  "plain",
		"":       "''",
		"a b":    "'a b'",
		`it's`:   `'it\'s'`,
		`back\s`: `'back\\s'`,
	}
	for in, want := range tests {
		if got := quoteDSN(in); got != want {
			t.Errorf("quoteDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.SSLMode = "sometimes"
	if err := bad.Validate(); err == nil {
		t.Error("expected an error for an unknown sslmode")
	}

	empty := Config{}
	if err := empty.Validate(); err == nil {
		t.Error("expected an error without host or URL")
	}
}

// --- Row Mapping Tests ---

func TestMenuArgs(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := menu.Record{
		Name:        "김치찌개",
		Price:       menu.Int(9000),
		Description: menu.Str("얼큰한 맛"),
		ReviewCount: 3,
		IsPopular:   true,
		SourceID:    "1234_0",
	}

	args := menuArgs(7, "1234", r, now)
	if len(args) != 13 {
		t.Fatalf("expected 13 args, got %d", len(args))
	}
	if args[0] != int64(7) || args[1] != "1234" || args[2] != "김치찌개" {
		t.Errorf("unexpected key args %v", args[:3])
	}
	if got := args[3].(sql.NullInt64); !got.Valid || got.Int64 != 9000 {
		t.Errorf("price = %+v", got)
	}
	if got := args[5].(sql.NullString); got.Valid {
		t.Errorf("missing category should be NULL, got %+v", got)
	}
	if got := args[7].(sql.NullFloat64); got.Valid {
		t.Errorf("missing rating should be NULL, got %+v", got)
	}
	if args[9] != true || args[10] != false {
		t.Errorf("flags = %v, %v", args[9], args[10])
	}
	if args[11] != "1234_0" || args[12] != now {
		t.Errorf("unexpected trailing args %v", args[11:])
	}
}

// --- MemorySink Tests ---

func TestMemorySink_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySink()

	id, err := m.StartLog(ctx, 1, "1234")
	if err != nil {
		t.Fatalf("StartLog() error = %v", err)
	}
	if l, _ := m.Log(id); l.Status != StatusPending {
		t.Errorf("status = %q, want pending", l.Status)
	}

	records := []menu.Record{
		{Name: "국밥", Price: menu.Int(8000)},
		{Name: "수육", Price: menu.Int(20000)},
	}
	n, err := m.SaveMenus(ctx, 1, "1234", records)
	if err != nil || n != 2 {
		t.Fatalf("SaveMenus() = %d, %v", n, err)
	}

	// Upsert by name keeps the first position.
	if _, err := m.SaveMenus(ctx, 1, "1234", []menu.Record{{Name: "국밥", Price: menu.Int(9000)}}); err != nil {
		t.Fatal(err)
	}
	stored := m.Menus(1, "1234")
	if len(stored) != 2 || stored[0].Name != "국밥" || *stored[0].Price != 9000 {
		t.Errorf("unexpected stored menus %+v", stored)
	}

	if err := m.SaveStats(ctx, 1, "1234", menu.Summarize(stored)); err != nil {
		t.Fatal(err)
	}
	if s, ok := m.Stats(1, "1234"); !ok || s.Total != 2 {
		t.Errorf("stats = %+v, %v", s, ok)
	}

	if err := m.CompleteLog(ctx, id, 2, true, ""); err != nil {
		t.Fatalf("CompleteLog() error = %v", err)
	}
	l, _ := m.Log(id)
	if l.Status != StatusSuccess || l.MenuCount != 2 || l.CompletedAt.IsZero() {
		t.Errorf("unexpected log %+v", l)
	}
}

func TestMemorySink_CompleteUnknownLog(t *testing.T) {
	m := NewMemorySink()
	err := m.CompleteLog(context.Background(), 42, 0, false, "boom")
	if !errors.Is(err, ErrUnknownLog) {
		t.Errorf("expected ErrUnknownLog, got %v", err)
	}
}

func TestMemorySink_FailedLog(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySink()
	id, _ := m.StartLog(ctx, 2, "99")
	if err := m.CompleteLog(ctx, id, 0, false, "timeout"); err != nil {
		t.Fatal(err)
	}

	logs := m.Logs()
	if len(logs) != 1 || logs[0].Status != StatusFailed || logs[0].Error != "timeout" {
		t.Errorf("unexpected logs %+v", logs)
	}
}

// --- Postgres Tests ---

// testDSN returns the database used by integration tests, skipping when
// none is configured.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MENUSCRAPE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MENUSCRAPE_TEST_DATABASE_URL not set")
	}
	return dsn
}

func TestPostgres_RoundTrip(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	p, err := OpenPostgres(ctx, Config{URL: dsn, ConnectRetries: 1, RetryDelay: time.Second})
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer p.Close()

	storeID := time.Now().UnixNano()
	id, err := p.StartLog(ctx, storeID, "it")
	if err != nil {
		t.Fatalf("StartLog() error = %v", err)
	}

	records := []menu.Record{
		{Name: "냉면", Price: menu.Int(11000), SourceID: "it_0"},
		{Name: "만두", SourceID: "it_1"},
	}
	n, err := p.SaveMenus(ctx, storeID, "it", records)
	if err != nil || n != 2 {
		t.Fatalf("SaveMenus() = %d, %v", n, err)
	}
	// A second save updates in place.
	if n, err := p.SaveMenus(ctx, storeID, "it", records[:1]); err != nil || n != 1 {
		t.Fatalf("second SaveMenus() = %d, %v", n, err)
	}

	if err := p.SaveStats(ctx, storeID, "it", menu.Summarize(records)); err != nil {
		t.Fatalf("SaveStats() error = %v", err)
	}
	if err := p.CompleteLog(ctx, id, n, true, ""); err != nil {
		t.Fatalf("CompleteLog() error = %v", err)
	}

	var count int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM naver_menus WHERE store_id = $1", storeID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 rows, got %d", count)
	}

	if err := p.CompleteLog(ctx, -1, 0, false, "x"); !errors.Is(err, ErrUnknownLog) {
		t.Errorf("expected ErrUnknownLog, got %v", err)
	}
}
