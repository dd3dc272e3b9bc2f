package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"horse.fit/safeagree/internal/config"
)

var errPoolNotInitialized = errors.New("database pool is not initialized")

// Pool is the postgres handle behind the catalog, users and the postgres
// artifact backend. Catalog queries are raw SQL; artifact blobs go through
// the ORM.
type Pool struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

type connLimits struct {
	maxOpen  int
	maxIdle  int
	idleTime time.Duration
	lifetime time.Duration
}

func connLimitsFor(cfg *config.Config) connLimits {
	maxOpen := int(cfg.DBMaxConns)
	if maxOpen <= 0 {
		maxOpen = 8
	}
	return connLimits{
		maxOpen:  maxOpen,
		maxIdle:  max(1, min(int(cfg.DBMinConns), maxOpen)),
		idleTime: 5 * time.Minute,
		lifetime: 30 * time.Minute,
	}
}

func (l connLimits) apply(sqlDB *sql.DB) {
	sqlDB.SetMaxOpenConns(l.maxOpen)
	sqlDB.SetMaxIdleConns(l.maxIdle)
	sqlDB.SetConnMaxIdleTime(l.idleTime)
	sqlDB.SetConnMaxLifetime(l.lifetime)
}

// NewPool connects, verifies the connection and brings the safeagree schema
// up to date.
func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(resolveGormLogLevel(cfg.LogLevel, cfg.Environment)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	connLimitsFor(cfg).apply(sqlDB)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, gdb); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Pool{gdb: gdb, sqlDB: sqlDB}, nil
}

func (p *Pool) ready() bool {
	return p != nil && p.gdb != nil
}

// errRow stands in for a row when the query never ran.
type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}

func (p *Pool) queryRow(ctx context.Context, q string, args ...any) rowScanner {
	if !p.ready() {
		return errRow{err: errPoolNotInitialized}
	}
	return p.gdb.WithContext(ctx).Raw(q, args...).Row()
}

func (p *Pool) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	if !p.ready() {
		return nil, errPoolNotInitialized
	}
	return p.gdb.WithContext(ctx).Raw(q, args...).Rows()
}

// exec runs a statement and reports the affected row count.
func (p *Pool) exec(ctx context.Context, q string, args ...any) (int64, error) {
	if !p.ready() {
		return 0, errPoolNotInitialized
	}
	res := p.gdb.WithContext(ctx).Exec(q, args...)
	return res.RowsAffected, res.Error
}

// transaction commits when fn returns nil and rolls back otherwise.
func (p *Pool) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if !p.ready() {
		return errPoolNotInitialized
	}
	return p.gdb.WithContext(ctx).Transaction(fn)
}

// Ping checks that the database is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	if p == nil || p.sqlDB == nil {
		return errPoolNotInitialized
	}
	return p.sqlDB.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.sqlDB == nil {
		return nil
	}
	return p.sqlDB.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLogLevel)) {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	}
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		return logger.Warn
	}
	return logger.Error
}
