// Package repo is the GORM persistence layer of the panel. Functions take the
// *gorm.DB to run on, so services pass a transaction handle when several
// writes must commit together. Money moves are guarded in SQL (conditional
// status updates and balance checks) rather than by read-then-write.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/pix-panel/internal/config"
	"github.com/tbourn/pix-panel/internal/domain"
)

// ErrDuplicate indicates a unique constraint violation.
var ErrDuplicate = errors.New("duplicate")

// gormConfig is shared by every dialector. Timestamps are always UTC so
// comparisons agree between SQLite text columns and Postgres timestamptz.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// sqlitePragmas apply to every pooled connection. WAL lets the webhook
// writer and balance readers proceed concurrently.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// Open connects to the configured database. When traced is true queries are
// recorded as OpenTelemetry spans.
func Open(cfg config.DBConfig, traced bool) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = OpenPostgres(cfg.URL)
	case "sqlite", "":
		db, err = OpenSQLite(cfg.Path)
	default:
		err = fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
	if err != nil || !traced {
		return db, err
	}
	if err := EnableTracing(db); err != nil {
		return nil, fmt.Errorf("gorm tracing: %w", err)
	}
	return db, nil
}

// EnableTracing installs the GORM OpenTelemetry plugin.
func EnableTracing(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin())
}

// OpenSQLite opens or creates the database file at path. The parent
// directory must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=" + strings.Join(sqlitePragmas, "&_pragma=")

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	return db, tunePool(db, 10)
}

// OpenPostgres opens a Postgres pool from a DSN or URL.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("empty postgres dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	return db, tunePool(db, 25)
}

func tunePool(db *gorm.DB, maxOpen int) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(maxOpen, 10))
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return nil
}

// AutoMigrate creates or updates every table the panel uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Payment{},
		&domain.WalletTransaction{},
		&domain.Withdrawal{},
		&domain.Photo{},
		&domain.PhotoPurchase{},
		&domain.AdminConfig{},
		&domain.WebhookEvent{},
		&domain.Idempotency{},
	)
}

// IsDuplicate reports whether err is a unique constraint violation. The pure
// Go SQLite driver does not always translate these, so the message is checked
// too.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
