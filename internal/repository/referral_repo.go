package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sirtheprogrammer/innervoice/internal/model"
)

// ReferralCodeRepository 推荐码映射数据访问接口
type ReferralCodeRepository interface {
	GetByCode(ctx context.Context, code string) (*model.ReferralCodeMapping, error)
	// CreateIfAbsent 插入映射，code 已存在时不覆盖，返回是否新建
	CreateIfAbsent(ctx context.Context, mapping *model.ReferralCodeMapping) (bool, error)
}

type referralCodeRepo struct {
	db *gorm.DB
}

// NewReferralCodeRepo 创建 ReferralCodeRepository 实例
func NewReferralCodeRepo(db *gorm.DB) ReferralCodeRepository {
	return &referralCodeRepo{db: db}
}

func (r *referralCodeRepo) GetByCode(ctx context.Context, code string) (*model.ReferralCodeMapping, error) {
	var mapping model.ReferralCodeMapping
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *referralCodeRepo) CreateIfAbsent(ctx context.Context, mapping *model.ReferralCodeMapping) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(mapping)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReferralTransactionRepository 推荐奖励流水数据访问接口（只追加）
type ReferralTransactionRepository interface {
	Create(ctx context.Context, txn *model.ReferralTransaction) error
	ListByReferrer(ctx context.Context, referrerID string, offset, limit int) ([]model.ReferralTransaction, int64, error)
}

type referralTransactionRepo struct {
	db *gorm.DB
}

// NewReferralTransactionRepo 创建 ReferralTransactionRepository 实例
func NewReferralTransactionRepo(db *gorm.DB) ReferralTransactionRepository {
	return &referralTransactionRepo{db: db}
}

func (r *referralTransactionRepo) Create(ctx context.Context, txn *model.ReferralTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *referralTransactionRepo) ListByReferrer(ctx context.Context, referrerID string, offset, limit int) ([]model.ReferralTransaction, int64, error) {
	var txns []model.ReferralTransaction
	var total int64

	db := r.db.WithContext(ctx).
		Model(&model.ReferralTransaction{}).
		Where("referrer_id = ?", referrerID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&txns).Error; err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}
