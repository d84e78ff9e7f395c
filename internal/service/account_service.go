package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/model"
	"github.com/Sirtheprogrammer/innervoice/internal/repository"
	"github.com/Sirtheprogrammer/innervoice/pkg/database"
)

// ── 账户模块业务错误 ──

var (
	ErrAccountNotFound   = errors.New("账户不存在")
	ErrAccountIDRequired = validationError("账户 id 不能为空")
)

// AccountService 账户业务接口
type AccountService interface {
	// Register 开户：创建账户、分配推荐码、归因推荐人
	// 账户已存在时返回现有资料；尚未归因且带推荐码时重试归因
	Register(ctx context.Context, accountID, claimedCode string) (*dto.RegisterResponse, error)
	// GetProfile 读取资料并顺带修复推荐码映射
	GetProfile(ctx context.Context, accountID string) (*dto.ProfileResponse, error)
	List(ctx context.Context, req *dto.PaginationRequest) ([]dto.ProfileResponse, int64, error)
	Count(ctx context.Context) (int64, error)
	Ban(ctx context.Context, accountID string) error
	Unban(ctx context.Context, accountID string) error
}

type accountService struct {
	repo     *repository.Repository
	codes    ReferralCodeService
	referral ReferralService
	cache    ProfileCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAccountService 创建 AccountService 实例
func NewAccountService(
	repo *repository.Repository,
	codes ReferralCodeService,
	referral ReferralService,
	cache ProfileCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) AccountService {
	return &accountService{
		repo:     repo,
		codes:    codes,
		referral: referral,
		cache:    orNoopCache(cache),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *accountService) Register(ctx context.Context, accountID, claimedCode string) (*dto.RegisterResponse, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, ErrAccountIDRequired
	}

	existing, err := s.repo.Account.GetByID(ctx, accountID)
	if err == nil {
		return s.existingRegistration(ctx, existing, claimedCode), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询账户失败", zap.String("account_id", accountID), zap.Error(err))
		return nil, err
	}

	now := time.Now()
	account := &model.Account{
		AccountID: accountID,
		BaseModel: model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.repo.Account.Create(ctx, account); err != nil {
		if database.IsUniqueViolation(err) {
			// 并发注册，另一请求已建档
			if existing, err := s.repo.Account.GetByID(ctx, accountID); err == nil {
				return s.existingRegistration(ctx, existing, claimedCode), nil
			}
		}
		s.logger.Error("创建账户失败", zap.String("account_id", accountID), zap.Error(err))
		return nil, err
	}

	// 推荐码分配失败不影响开户，后续读取资料或巡检时补发
	if code, err := s.codes.IssueCode(ctx, accountID); err != nil {
		s.logger.Error("开户时分配推荐码失败", zap.String("account_id", accountID), zap.Error(err))
	} else {
		account.ReferralCode = &code
	}

	if referrerID, ok := s.referral.Attribute(ctx, accountID, claimedCode); ok {
		account.ReferredBy = &referrerID
	}

	s.logger.Info("账户已创建",
		zap.String("account_id", accountID),
		zap.String("code", account.Code()),
		zap.Bool("referred", account.ReferredBy != nil),
	)

	return &dto.RegisterResponse{Profile: toProfileResponse(account), Created: true}, nil
}

// existingRegistration 重复开户请求（客户端重试、并发注册）
// 上次归因失败时在此重试，referred_by 的条件占用保证奖励至多发放一次
func (s *accountService) existingRegistration(ctx context.Context, account *model.Account, claimedCode string) *dto.RegisterResponse {
	s.codes.HealMapping(ctx, account)

	if account.ReferredBy == nil && NormalizeCode(claimedCode) != "" {
		if referrerID, ok := s.referral.Attribute(ctx, account.AccountID, claimedCode); ok {
			account.ReferredBy = &referrerID
		}
	}
	return &dto.RegisterResponse{Profile: toProfileResponse(account), Created: false}
}

// ────────────────────── GetProfile ──────────────────────

func (s *accountService) GetProfile(ctx context.Context, accountID string) (*dto.ProfileResponse, error) {
	var cached dto.ProfileResponse
	hit, err := s.cache.GetProfile(ctx, accountID, &cached)
	if err != nil {
		s.logger.Warn("读取资料缓存失败", zap.String("account_id", accountID), zap.Error(err))
	} else if hit {
		s.healCached(ctx, &cached)
		return &cached, nil
	}

	// 读库前取版本号，读库期间账本变动（缓存被清除）则不回写旧快照
	version, err := s.cache.ProfileVersion(ctx, accountID)
	cacheable := err == nil
	if err != nil {
		s.logger.Warn("读取资料缓存版本失败", zap.String("account_id", accountID), zap.Error(err))
	}

	account, err := s.repo.Account.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		s.logger.Error("查询账户失败", zap.String("account_id", accountID), zap.Error(err))
		return nil, err
	}

	s.codes.HealMapping(ctx, account)

	resp := toProfileResponse(account)
	if cacheable {
		if err := s.cache.SetProfile(ctx, accountID, resp, version, s.cacheTTL); err != nil {
			s.logger.Warn("写入资料缓存失败", zap.String("account_id", accountID), zap.Error(err))
		}
	}
	return &resp, nil
}

// healCached 命中缓存时同样修复推荐码映射，补发推荐码后清除缓存
func (s *accountService) healCached(ctx context.Context, profile *dto.ProfileResponse) {
	account := &model.Account{AccountID: profile.AccountID}
	if profile.ReferralCode != "" {
		code := profile.ReferralCode
		account.ReferralCode = &code
	}

	issued, err := s.codes.Reconcile(ctx, account)
	if err != nil {
		s.logger.Warn("推荐码修复失败", zap.String("account_id", profile.AccountID), zap.Error(err))
		return
	}
	if issued {
		profile.ReferralCode = account.Code()
		if err := s.cache.InvalidateProfile(ctx, profile.AccountID); err != nil {
			s.logger.Warn("清除资料缓存失败", zap.String("account_id", profile.AccountID), zap.Error(err))
		}
	}
}

// ────────────────────── Admin ──────────────────────

func (s *accountService) List(ctx context.Context, req *dto.PaginationRequest) ([]dto.ProfileResponse, int64, error) {
	accounts, total, err := s.repo.Account.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询账户列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.ProfileResponse, 0, len(accounts))
	for i := range accounts {
		list = append(list, toProfileResponse(&accounts[i]))
	}
	return list, total, nil
}

func (s *accountService) Count(ctx context.Context) (int64, error) {
	total, err := s.repo.Account.Count(ctx)
	if err != nil {
		s.logger.Error("统计账户数失败", zap.Error(err))
	}
	return total, err
}

func (s *accountService) Ban(ctx context.Context, accountID string) error {
	return s.setBanned(ctx, accountID, true)
}

func (s *accountService) Unban(ctx context.Context, accountID string) error {
	return s.setBanned(ctx, accountID, false)
}

func (s *accountService) setBanned(ctx context.Context, accountID string, banned bool) error {
	if err := s.repo.Account.SetBanned(ctx, accountID, banned); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		s.logger.Error("更新封禁状态失败", zap.String("account_id", accountID), zap.Error(err))
		return err
	}

	if err := s.cache.InvalidateProfile(ctx, accountID); err != nil {
		s.logger.Warn("清除资料缓存失败", zap.String("account_id", accountID), zap.Error(err))
	}
	s.logger.Info("封禁状态已更新", zap.String("account_id", accountID), zap.Bool("banned", banned))
	return nil
}
