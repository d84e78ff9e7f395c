package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/model"
	"github.com/Sirtheprogrammer/innervoice/internal/repository"
)

var errAlreadyAttributed = errors.New("账户已有推荐人")

// RewardConfig 单次推荐奖励
type RewardConfig struct {
	XP      int64
	Balance int64
}

// ReferralService 推荐归因
type ReferralService interface {
	// Attribute 将新账户归因到推荐码所有者并发放奖励，返回推荐人 id
	// 任何失败（含自我推荐、重复归因）都只记日志，返回 false
	Attribute(ctx context.Context, newAccountID, claimedCode string) (string, bool)
	ListByReferrer(ctx context.Context, referrerID string, req *dto.PaginationRequest) ([]dto.ReferralTransactionResponse, int64, error)
}

type referralService struct {
	repo   *repository.Repository
	codes  ReferralCodeService
	cache  ProfileCache
	reward RewardConfig
	logger *zap.Logger
}

// NewReferralService 创建 ReferralService 实例
func NewReferralService(repo *repository.Repository, codes ReferralCodeService, cache ProfileCache, reward RewardConfig, logger *zap.Logger) ReferralService {
	return &referralService{repo: repo, codes: codes, cache: orNoopCache(cache), reward: reward, logger: logger}
}

// ────────────────────── Attribute ──────────────────────

func (s *referralService) Attribute(ctx context.Context, newAccountID, claimedCode string) (string, bool) {
	code := NormalizeCode(claimedCode)
	if code == "" {
		return "", false
	}
	log := s.logger.With(zap.String("account_id", newAccountID), zap.String("code", code))

	if !ValidCodeFormat(code) {
		log.Info("推荐码格式错误，忽略归因")
		return "", false
	}

	referrerID, err := s.resolve(ctx, code)
	if err != nil {
		log.Warn("推荐码解析失败，忽略归因", zap.Error(err))
		return "", false
	}

	if referrerID == newAccountID {
		log.Warn("拒绝自我推荐")
		return "", false
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 先占用 referred_by，重复调用在此处止步，不会重复发放奖励
		claimed, err := tx.Account.ClaimReferredBy(ctx, newAccountID, referrerID)
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadyAttributed
		}

		if err := tx.Account.CreditReferralReward(ctx, referrerID, s.reward.XP, s.reward.Balance); err != nil {
			return err
		}

		return tx.ReferralTx.Create(ctx, &model.ReferralTransaction{
			TransactionID:  uuid.NewString(),
			ReferrerID:     referrerID,
			ReferredUserID: newAccountID,
			RewardXP:       s.reward.XP,
			RewardBalance:  s.reward.Balance,
			Status:         model.ReferralTransactionCompleted,
		})
	})
	if err != nil {
		if errors.Is(err, errAlreadyAttributed) {
			log.Info("账户已归因，跳过奖励发放")
		} else {
			log.Error("发放推荐奖励失败", zap.String("referrer_id", referrerID), zap.Error(err))
		}
		return "", false
	}

	if err := s.cache.InvalidateProfile(ctx, referrerID, newAccountID); err != nil {
		log.Warn("清除资料缓存失败", zap.Error(err))
	}

	log.Info("推荐奖励已发放",
		zap.String("referrer_id", referrerID),
		zap.Int64("reward_xp", s.reward.XP),
		zap.Int64("reward_balance", s.reward.Balance),
	)
	return referrerID, true
}

// resolve 先查映射；未命中时按账户推荐码扫描一次，修复映射后再解析一次
func (s *referralService) resolve(ctx context.Context, code string) (string, error) {
	owner, err := s.codes.Resolve(ctx, code)
	if err == nil || !errors.Is(err, ErrReferralCodeNotFound) {
		return owner, err
	}

	account, err := s.repo.Account.FindByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrReferralCodeNotFound
		}
		return "", err
	}

	s.codes.HealMapping(ctx, account)
	return s.codes.Resolve(ctx, code)
}

// ────────────────────── ListByReferrer ──────────────────────

func (s *referralService) ListByReferrer(ctx context.Context, referrerID string, req *dto.PaginationRequest) ([]dto.ReferralTransactionResponse, int64, error) {
	txns, total, err := s.repo.ReferralTx.ListByReferrer(ctx, referrerID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询推荐流水失败", zap.String("account_id", referrerID), zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.ReferralTransactionResponse, 0, len(txns))
	for i := range txns {
		list = append(list, toReferralTransactionResponse(&txns[i]))
	}
	return list, total, nil
}
