package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/model"
	"github.com/Sirtheprogrammer/innervoice/internal/repository"
	"github.com/Sirtheprogrammer/innervoice/pkg/database"
	pkgerrors "github.com/Sirtheprogrammer/innervoice/pkg/errors"
)

// ── 提现模块业务错误 ──

var (
	ErrPayoutAmountTooLow  = validationError("提现金额低于最低额度")
	ErrPayoutPhoneRequired = validationError("手机号不能为空")
	ErrPayoutNameRequired  = validationError("收款人姓名不能为空")
	ErrInsufficientBalance = errors.New("余额不足")
	ErrPayoutNotFound      = errors.New("提现申请不存在")
	ErrPayoutNotPending    = errors.New("只能处理待审核的提现申请")
	ErrAccountBanned       = errors.New("账户已被封禁")
)

// PayoutService 提现账本
// 状态机：pending → approved（终态）| rejected（终态，退回余额）
type PayoutService interface {
	// RequestPayout 校验后在同一事务内扣减余额并创建待审核申请
	RequestPayout(ctx context.Context, accountID string, amount int64, phoneNumber, fullName string) (*dto.PayoutResponse, error)
	ApprovePayout(ctx context.Context, id string) (*dto.PayoutResponse, error)
	// RejectPayout 在同一事务内置为 rejected 并退回金额
	RejectPayout(ctx context.Context, id string) (*dto.PayoutResponse, error)
	// GetAllPendingPayouts 按创建时间倒序
	GetAllPendingPayouts(ctx context.Context) ([]dto.PayoutResponse, error)
	ListPayoutsByAccount(ctx context.Context, accountID string, req *dto.PaginationRequest) ([]dto.PayoutResponse, int64, error)
}

type payoutService struct {
	repo      *repository.Repository
	cache     ProfileCache
	minAmount int64
	now       func() time.Time
	logger    *zap.Logger
}

// NewPayoutService 创建 PayoutService 实例
func NewPayoutService(repo *repository.Repository, cache ProfileCache, minAmount int64, logger *zap.Logger) PayoutService {
	return &payoutService{
		repo:      repo,
		cache:     orNoopCache(cache),
		minAmount: minAmount,
		now:       time.Now,
		logger:    logger,
	}
}

// ────────────────────── RequestPayout ──────────────────────

func (s *payoutService) RequestPayout(ctx context.Context, accountID string, amount int64, phoneNumber, fullName string) (*dto.PayoutResponse, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	fullName = strings.TrimSpace(fullName)

	if amount < s.minAmount {
		return nil, ErrPayoutAmountTooLow
	}
	if phoneNumber == "" {
		return nil, ErrPayoutPhoneRequired
	}
	if fullName == "" {
		return nil, ErrPayoutNameRequired
	}

	now := s.now()
	payout := &model.PayoutRequest{
		PayoutID:    uuid.NewString(),
		AccountID:   accountID,
		Amount:      amount,
		PhoneNumber: phoneNumber,
		FullName:    fullName,
		Status:      model.PayoutStatusPending,
		BaseModel:   model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		account, err := tx.Account.GetByIDForUpdate(ctx, accountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if account.Banned {
			return ErrAccountBanned
		}
		if account.Balance < amount {
			return ErrInsufficientBalance
		}

		if err := tx.Account.Debit(ctx, accountID, amount); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return ErrInsufficientBalance
			}
			return err
		}
		return tx.Payout.Create(ctx, payout)
	})
	if err != nil {
		if database.IsCheckViolation(err) {
			err = ErrInsufficientBalance
		}
		if !isLedgerRejection(err) {
			s.logger.Error("创建提现申请失败", zap.String("account_id", accountID), zap.Int64("amount", amount), zap.Error(err))
		}
		return nil, err
	}

	s.invalidate(ctx, accountID)
	s.logger.Info("提现申请已创建",
		zap.String("payout_id", payout.PayoutID),
		zap.String("account_id", accountID),
		zap.Int64("amount", amount),
	)

	resp := toPayoutResponse(payout)
	return &resp, nil
}

// isLedgerRejection 业务规则拒绝，不记错误日志
func isLedgerRejection(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrAccountBanned) ||
		errors.Is(err, ErrPayoutNotFound) ||
		errors.Is(err, ErrPayoutNotPending)
}

// ────────────────────── ApprovePayout ──────────────────────

func (s *payoutService) ApprovePayout(ctx context.Context, id string) (*dto.PayoutResponse, error) {
	ok, err := s.repo.Payout.Transition(ctx, id, model.PayoutStatusPending, model.PayoutStatusApproved, s.now())
	if err != nil {
		s.logger.Error("审批提现申请失败", zap.String("payout_id", id), zap.Error(err))
		return nil, err
	}

	payout, err := s.repo.Payout.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayoutNotFound
		}
		s.logger.Error("查询提现申请失败", zap.String("payout_id", id), zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, ErrPayoutNotPending
	}

	s.logger.Info("提现申请已批准", zap.String("payout_id", id), zap.String("account_id", payout.AccountID))
	resp := toPayoutResponse(payout)
	return &resp, nil
}

// ────────────────────── RejectPayout ──────────────────────

func (s *payoutService) RejectPayout(ctx context.Context, id string) (*dto.PayoutResponse, error) {
	var payout *model.PayoutRequest

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		p, err := tx.Payout.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPayoutNotFound
			}
			return err
		}
		if !p.IsPending() {
			return ErrPayoutNotPending
		}

		now := s.now()
		ok, err := tx.Payout.Transition(ctx, id, model.PayoutStatusPending, model.PayoutStatusRejected, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPayoutNotPending
		}

		if err := tx.Account.Credit(ctx, p.AccountID, p.Amount); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		p.Status = model.PayoutStatusRejected
		p.ProcessedAt = &now
		payout = p
		return nil
	})
	if err != nil {
		if !isLedgerRejection(err) {
			s.logger.Error("驳回提现申请失败", zap.String("payout_id", id), zap.Error(err))
		}
		return nil, err
	}

	s.invalidate(ctx, payout.AccountID)
	s.logger.Info("提现申请已驳回并退回余额",
		zap.String("payout_id", id),
		zap.String("account_id", payout.AccountID),
		zap.Int64("amount", payout.Amount),
	)

	resp := toPayoutResponse(payout)
	return &resp, nil
}

// ────────────────────── Queries ──────────────────────

func (s *payoutService) GetAllPendingPayouts(ctx context.Context) ([]dto.PayoutResponse, error) {
	payouts, err := s.repo.Payout.ListByStatus(ctx, model.PayoutStatusPending)
	if err != nil {
		s.logger.Error("查询待审核提现失败", zap.Error(err))
		return nil, err
	}

	list := make([]dto.PayoutResponse, 0, len(payouts))
	for i := range payouts {
		list = append(list, toPayoutResponse(&payouts[i]))
	}
	return list, nil
}

func (s *payoutService) ListPayoutsByAccount(ctx context.Context, accountID string, req *dto.PaginationRequest) ([]dto.PayoutResponse, int64, error) {
	payouts, total, err := s.repo.Payout.ListByAccount(ctx, accountID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询提现记录失败", zap.String("account_id", accountID), zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.PayoutResponse, 0, len(payouts))
	for i := range payouts {
		list = append(list, toPayoutResponse(&payouts[i]))
	}
	return list, total, nil
}

func (s *payoutService) invalidate(ctx context.Context, accountID string) {
	if err := s.cache.InvalidateProfile(ctx, accountID); err != nil {
		s.logger.Warn("清除资料缓存失败", zap.String("account_id", accountID), zap.Error(err))
	}
}
