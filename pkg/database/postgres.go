package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/graphrapids/graphapi/pkg/logger"
)

const slowQuery = 200 * time.Millisecond

// OpenPostgres opens a Gorm PostgreSQL connection, retrying until the server
// answers a ping. verbose logs gorm warnings and slow queries.
func OpenPostgres(ctx context.Context, dsn string, verbose bool) (*gorm.DB, error) {
	level := gormlogger.Silent
	if verbose {
		level = gormlogger.Warn
	}

	var db *gorm.DB
	err := retry(ctx, "postgres", defaultBackoff, func(ctx context.Context) error {
		conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:                 zapGormLogger{zap: logger.L(), level: level},
			SkipDefaultTransaction: true,
		})
		if err != nil {
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	// Writes are serialized per collection by the store; a small pool is enough.
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

type backoff struct {
	attempts int
	delay    time.Duration
	maxDelay time.Duration
}

var defaultBackoff = backoff{attempts: 6, delay: 500 * time.Millisecond, maxDelay: 5 * time.Second}

func (b backoff) wait(attempt int) time.Duration {
	d := b.delay << attempt
	if d > b.maxDelay {
		return b.maxDelay
	}
	return d
}

// retry runs fn until it succeeds, attempts run out or ctx ends.
func retry(ctx context.Context, what string, b backoff, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < b.attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		wait := b.wait(attempt)
		logger.L().Warn("database not reachable yet",
			zap.String("database", what),
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("open %s canceled: %w", what, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("open %s failed after %d attempts: %w", what, b.attempts, err)
}

// zapGormLogger adapts gorm's logger interface to zap.
type zapGormLogger struct {
	zap   *zap.Logger
	level gormlogger.LogLevel
}

func (l zapGormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	l.level = level
	return l
}

func (l zapGormLogger) Info(ctx context.Context, s string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.zap.Sugar().Infof(s, args...)
	}
}

func (l zapGormLogger) Warn(ctx context.Context, s string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.zap.Sugar().Warnf(s, args...)
	}
}

func (l zapGormLogger) Error(ctx context.Context, s string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.zap.Sugar().Errorf(s, args...)
	}
}

func (l zapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.zap.Error("gorm query error", zap.Duration("duration", elapsed), zap.Int64("rows", rows), zap.String("sql", sql), zap.Error(err))
	case elapsed > slowQuery && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.zap.Warn("gorm slow query", zap.Duration("duration", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.zap.Debug("gorm query", zap.Duration("duration", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}
