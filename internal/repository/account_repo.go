package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sirtheprogrammer/innervoice/internal/model"
	pkgerrors "github.com/Sirtheprogrammer/innervoice/pkg/errors"
)

// AccountRepository 账户数据访问接口
// 余额类字段只允许通过原子增减修改，不提供整行 Save
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id string) (*model.Account, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 行级锁读取账户，必须在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.Account, error)
	FindByReferralCode(ctx context.Context, code string) (*model.Account, error)
	// SetReferralCode 仅当账户尚无推荐码时写入，否则返回 ErrOptimisticLock
	SetReferralCode(ctx context.Context, id, code string) error
	// ClaimReferredBy 仅当 referred_by 为空时写入，返回是否写入成功
	ClaimReferredBy(ctx context.Context, id, referrerID string) (bool, error)
	CreditReferralReward(ctx context.Context, id string, xp, balance int64) error
	// Debit 仅当余额充足时扣减，否则返回 ErrOptimisticLock
	Debit(ctx context.Context, id string, amount int64) error
	Credit(ctx context.Context, id string, amount int64) error
	SetBanned(ctx context.Context, id string, banned bool) error
	List(ctx context.Context, offset, limit int) ([]model.Account, int64, error)
	Count(ctx context.Context) (int64, error)
	// ListAfter 按 account_id 升序游标分页，供巡检批量遍历
	ListAfter(ctx context.Context, afterID string, limit int) ([]model.Account, error)
}

type accountRepo struct {
	db *gorm.DB
}

// NewAccountRepo 创建 AccountRepository 实例
func NewAccountRepo(db *gorm.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("account_id = ?", id).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", id).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) FindByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Where("referral_code = ?", code).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) SetReferralCode(ctx context.Context, id, code string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ? AND referral_code IS NULL", id).
		Updates(map[string]interface{}{
			"referral_code": code,
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *accountRepo) ClaimReferredBy(ctx context.Context, id, referrerID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ? AND referred_by IS NULL", id).
		Updates(map[string]interface{}{
			"referred_by": referrerID,
			"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *accountRepo) CreditReferralReward(ctx context.Context, id string, xp, balance int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ?", id).
		Updates(map[string]interface{}{
			"xp":             gorm.Expr("xp + ?", xp),
			"balance":        gorm.Expr("balance + ?", balance),
			"referral_count": gorm.Expr("referral_count + 1"),
			"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *accountRepo) Debit(ctx context.Context, id string, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ? AND balance >= ?", id, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *accountRepo) Credit(ctx context.Context, id string, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ?", id).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *accountRepo) SetBanned(ctx context.Context, id string, banned bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ?", id).
		Updates(map[string]interface{}{
			"banned":     banned,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *accountRepo) List(ctx context.Context, offset, limit int) ([]model.Account, int64, error) {
	var accounts []model.Account
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Account{})

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&accounts).Error; err != nil {
		return nil, 0, err
	}

	return accounts, total, nil
}

func (r *accountRepo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Account{}).Count(&total).Error
	return total, err
}

func (r *accountRepo) ListAfter(ctx context.Context, afterID string, limit int) ([]model.Account, error) {
	var accounts []model.Account
	err := r.db.WithContext(ctx).
		Where("account_id > ?", afterID).
		Order("account_id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}
