package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
	sqlStateCheckViolation       = "23514"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsRetryable 事务因并发冲突被数据库中止，可整体重放
func IsRetryable(err error) bool {
	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}

// IsUniqueViolation 唯一约束冲突（含 gorm 翻译后的 ErrDuplicatedKey）
func IsUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation || errors.Is(err, gorm.ErrDuplicatedKey)
}

// IsCheckViolation CHECK 约束冲突（如 balance >= 0）
func IsCheckViolation(err error) bool {
	return sqlState(err) == sqlStateCheckViolation
}

// Backoff 第 attempt 次重试前的等待时长，按 base 指数增长
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return base
	}
	d := base << uint(attempt-1)
	if d <= 0 || d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}

// SleepWithContext 等待 d，ctx 取消时提前返回 ctx.Err()
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
