package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sirtheprogrammer/innervoice/internal/model"
)

// PayoutRepository 提现申请数据访问接口
type PayoutRepository interface {
	Create(ctx context.Context, payout *model.PayoutRequest) error
	GetByID(ctx context.Context, id string) (*model.PayoutRequest, error)
	// GetByIDForUpdate 行级锁读取，必须在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.PayoutRequest, error)
	// Transition 仅当当前状态为 from 时改为 to 并记录处理时间，返回是否命中
	Transition(ctx context.Context, id, from, to string, processedAt time.Time) (bool, error)
	ListByStatus(ctx context.Context, status string) ([]model.PayoutRequest, error)
	ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]model.PayoutRequest, int64, error)
}

type payoutRepo struct {
	db *gorm.DB
}

// NewPayoutRepo 创建 PayoutRepository 实例
func NewPayoutRepo(db *gorm.DB) PayoutRepository {
	return &payoutRepo{db: db}
}

func (r *payoutRepo) Create(ctx context.Context, payout *model.PayoutRequest) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *payoutRepo) GetByID(ctx context.Context, id string) (*model.PayoutRequest, error) {
	var payout model.PayoutRequest
	err := r.db.WithContext(ctx).
		Where("payout_id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *payoutRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.PayoutRequest, error) {
	var payout model.PayoutRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payout_id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *payoutRepo) Transition(ctx context.Context, id, from, to string, processedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.PayoutRequest{}).
		Where("payout_id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":       to,
			"processed_at": processedAt,
			"updated_at":   processedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListByStatus 按创建时间倒序
func (r *payoutRepo) ListByStatus(ctx context.Context, status string) ([]model.PayoutRequest, error) {
	var payouts []model.PayoutRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&payouts).Error
	return payouts, err
}

func (r *payoutRepo) ListByAccount(ctx context.Context, accountID string, offset, limit int) ([]model.PayoutRequest, int64, error) {
	var payouts []model.PayoutRequest
	var total int64

	db := r.db.WithContext(ctx).
		Model(&model.PayoutRequest{}).
		Where("account_id = ?", accountID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&payouts).Error; err != nil {
		return nil, 0, err
	}

	return payouts, total, nil
}
