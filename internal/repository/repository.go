package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Sirtheprogrammer/innervoice/pkg/database"
	pkgerrors "github.com/Sirtheprogrammer/innervoice/pkg/errors"
)

// TxOptions 事务冲突重试参数
type TxOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Account      AccountRepository
	ReferralCode ReferralCodeRepository
	ReferralTx   ReferralTransactionRepository
	Payout       PayoutRepository

	db     *gorm.DB
	txOpts TxOptions
	inTx   bool
	// db 为 nil（单元测试注入内存实现）时用于串行化事务
	txMu sync.Mutex
}

// Snapshotter 内存实现可选实现：db 为 nil 时事务开始前取快照，fn 失败时恢复
type Snapshotter interface {
	Snapshot() (restore func())
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB, opts TxOptions) *Repository {
	r := &Repository{db: db, txOpts: opts}
	r.Account = NewAccountRepo(db)
	r.ReferralCode = NewReferralCodeRepo(db)
	r.ReferralTx = NewReferralTransactionRepo(db)
	r.Payout = NewPayoutRepo(db)
	return r
}

// WithTx 返回绑定到事务连接的 Repository
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return &Repository{
			Account:      r.Account,
			ReferralCode: r.ReferralCode,
			ReferralTx:   r.ReferralTx,
			Payout:       r.Payout,
			inTx:         true,
		}
	}
	return &Repository{
		Account:      NewAccountRepo(tx),
		ReferralCode: NewReferralCodeRepo(tx),
		ReferralTx:   NewReferralTransactionRepo(tx),
		Payout:       NewPayoutRepo(tx),
		db:           tx,
		txOpts:       r.txOpts,
		inTx:         true,
	}
}

// Transaction 在事务中执行 fn，fn 返回错误时整体回滚
// 数据库报告序列化失败或死锁时按指数退避整体重放，次数耗尽返回 ErrTxConflict
// 已处于事务中时直接在当前事务内执行
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	if r.db == nil {
		r.txMu.Lock()
		defer r.txMu.Unlock()
		restore := r.snapshot()
		if err := fn(r.WithTx(nil)); err != nil {
			restore()
			return err
		}
		return nil
	}

	maxAttempts := r.txOpts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(r.WithTx(tx))
		})
		if err == nil || !database.IsRetryable(err) {
			return err
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("%w: %v", pkgerrors.ErrTxConflict, err)
		}
		if err := database.SleepWithContext(ctx, database.Backoff(r.txOpts.BaseDelay, attempt)); err != nil {
			return err
		}
	}
}

func (r *Repository) snapshot() func() {
	var restores []func()
	for _, repo := range []interface{}{r.Account, r.ReferralCode, r.ReferralTx, r.Payout} {
		if s, ok := repo.(Snapshotter); ok {
			restores = append(restores, s.Snapshot())
		}
	}
	return func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}
}
