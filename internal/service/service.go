package service

import (
	"go.uber.org/zap"

	"github.com/Sirtheprogrammer/innervoice/config"
	"github.com/Sirtheprogrammer/innervoice/internal/repository"
	"github.com/Sirtheprogrammer/innervoice/pkg/storage"
)

// Service 所有 Service 的聚合入口
type Service struct {
	ReferralCode ReferralCodeService
	Referral     ReferralService
	Account      AccountService
	Payout       PayoutService
	Export       ExportService
}

// NewService 创建 Service 聚合
// cache 可传入 nil 的 *redis.Client，archiver 可为 nil
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	cache ProfileCache,
	archiver storage.Archiver,
	logger *zap.Logger,
) *Service {
	codes := NewReferralCodeService(repo, cfg.Ledger.CodeIssueAttempts, logger)
	referral := NewReferralService(repo, codes, cache, RewardConfig{
		XP:      cfg.Ledger.ReferralRewardXP,
		Balance: cfg.Ledger.ReferralRewardBalance,
	}, logger)
	payout := NewPayoutService(repo, cache, cfg.Ledger.PayoutMinAmount, logger)

	return &Service{
		ReferralCode: codes,
		Referral:     referral,
		Account:      NewAccountService(repo, codes, referral, cache, cfg.Ledger.ProfileCacheTTL, logger),
		Payout:       payout,
		Export:       NewExportService(payout, archiver, logger),
	}
}
