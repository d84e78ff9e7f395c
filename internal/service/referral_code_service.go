package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/model"
	"github.com/Sirtheprogrammer/innervoice/internal/repository"
	"github.com/Sirtheprogrammer/innervoice/pkg/database"
	pkgerrors "github.com/Sirtheprogrammer/innervoice/pkg/errors"
)

// ── 推荐码模块业务错误 ──

var (
	ErrReferralCodeNotFound = errors.New("推荐码不存在")
	ErrReferralCodeFormat   = validationError("推荐码格式错误")
	ErrCodeIssueExhausted   = errors.New("推荐码生成冲突次数过多，请稍后重试")

	errCodeTaken = errors.New("推荐码已被占用")
)

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NormalizeCode 去除首尾空白并转为大写
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCodeFormat 是否为 8 位大写字母数字
func ValidCodeFormat(code string) bool {
	if len(code) != referralCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(referralCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// ReferralCodeService 推荐码注册表
type ReferralCodeService interface {
	// GenerateCode 从 [A-Z0-9] 均匀抽取 8 位，不检查重复
	GenerateCode() (string, error)
	// EnsureMapping 映射不存在时创建；已存在时不覆盖，归属不同也不报错
	EnsureMapping(ctx context.Context, code, ownerID string) error
	// HealMapping 修复账户推荐码映射，账户无推荐码时补发；错误只记日志
	HealMapping(ctx context.Context, account *model.Account)
	// Reconcile 同 HealMapping，但返回是否补发了推荐码及错误，供批量巡检统计
	Reconcile(ctx context.Context, account *model.Account) (bool, error)
	// IssueCode 为账户分配唯一推荐码，冲突时重新生成
	IssueCode(ctx context.Context, accountID string) (string, error)
	// Resolve 推荐码 → 归属账户 id
	Resolve(ctx context.Context, code string) (string, error)
	Lookup(ctx context.Context, code string) (*dto.CodeLookupResponse, error)
	// HealAll 遍历全部账户执行 Reconcile
	HealAll(ctx context.Context, batch int) (*dto.HealReport, error)
}

type referralCodeService struct {
	repo     *repository.Repository
	attempts int
	generate func() (string, error)
	logger   *zap.Logger
}

// NewReferralCodeService 创建 ReferralCodeService 实例
func NewReferralCodeService(repo *repository.Repository, attempts int, logger *zap.Logger) ReferralCodeService {
	if attempts <= 0 {
		attempts = 1
	}
	return &referralCodeService{repo: repo, attempts: attempts, generate: generateCode, logger: logger}
}

// ────────────────────── GenerateCode ──────────────────────

func (s *referralCodeService) GenerateCode() (string, error) {
	return generateCode()
}

func generateCode() (string, error) {
	limit := big.NewInt(int64(len(referralCodeAlphabet)))
	result := make([]byte, referralCodeLength)
	for i := range result {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		result[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(result), nil
}

// ────────────────────── EnsureMapping ──────────────────────

func (s *referralCodeService) EnsureMapping(ctx context.Context, code, ownerID string) error {
	existing, err := s.repo.ReferralCode.GetByCode(ctx, code)
	if err == nil {
		s.warnOwnerMismatch(existing, ownerID)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询推荐码映射失败", zap.String("code", code), zap.Error(err))
		return err
	}

	created, err := s.repo.ReferralCode.CreateIfAbsent(ctx, &model.ReferralCodeMapping{
		Code:           code,
		OwnerAccountID: ownerID,
	})
	if err != nil {
		s.logger.Error("创建推荐码映射失败", zap.String("code", code), zap.Error(err))
		return err
	}
	if created {
		s.logger.Info("推荐码映射已创建", zap.String("code", code), zap.String("account_id", ownerID))
		return nil
	}

	// 检查与插入之间被并发写入
	if existing, err := s.repo.ReferralCode.GetByCode(ctx, code); err == nil {
		s.warnOwnerMismatch(existing, ownerID)
	}
	return nil
}

func (s *referralCodeService) warnOwnerMismatch(existing *model.ReferralCodeMapping, ownerID string) {
	if existing.OwnerAccountID != ownerID {
		s.logger.Warn("推荐码已归属其他账户，保留原映射",
			zap.String("code", existing.Code),
			zap.String("owner", existing.OwnerAccountID),
			zap.String("claimed_by", ownerID),
		)
	}
}

// ────────────────────── HealMapping ──────────────────────

func (s *referralCodeService) HealMapping(ctx context.Context, account *model.Account) {
	if _, err := s.Reconcile(ctx, account); err != nil {
		s.logger.Warn("推荐码修复失败", zap.String("account_id", account.AccountID), zap.Error(err))
	}
}

func (s *referralCodeService) Reconcile(ctx context.Context, account *model.Account) (bool, error) {
	if account.ReferralCode == nil || *account.ReferralCode == "" {
		code, err := s.IssueCode(ctx, account.AccountID)
		if err != nil {
			return false, err
		}
		account.ReferralCode = &code
		return true, nil
	}
	return false, s.EnsureMapping(ctx, *account.ReferralCode, account.AccountID)
}

// ────────────────────── IssueCode ──────────────────────

func (s *referralCodeService) IssueCode(ctx context.Context, accountID string) (string, error) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return "", err
		}

		err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			created, err := tx.ReferralCode.CreateIfAbsent(ctx, &model.ReferralCodeMapping{
				Code:           code,
				OwnerAccountID: accountID,
			})
			if err != nil {
				return err
			}
			if !created {
				return errCodeTaken
			}
			return tx.Account.SetReferralCode(ctx, accountID, code)
		})

		switch {
		case err == nil:
			s.logger.Info("推荐码已分配", zap.String("account_id", accountID), zap.String("code", code))
			return code, nil
		case errors.Is(err, errCodeTaken), database.IsUniqueViolation(err):
			s.logger.Warn("推荐码冲突，重新生成",
				zap.String("account_id", accountID),
				zap.String("code", code),
				zap.Int("attempt", attempt),
			)
		case errors.Is(err, pkgerrors.ErrOptimisticLock):
			// 账户已有推荐码（并发分配）或账户不存在
			return s.existingCode(ctx, accountID)
		default:
			s.logger.Error("分配推荐码失败", zap.String("account_id", accountID), zap.Error(err))
			return "", err
		}
	}
	return "", ErrCodeIssueExhausted
}

func (s *referralCodeService) existingCode(ctx context.Context, accountID string) (string, error) {
	account, err := s.repo.Account.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	if account.ReferralCode == nil {
		return "", pkgerrors.ErrOptimisticLock
	}
	return *account.ReferralCode, nil
}

// ────────────────────── Resolve / Lookup ──────────────────────

func (s *referralCodeService) Resolve(ctx context.Context, code string) (string, error) {
	mapping, err := s.repo.ReferralCode.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrReferralCodeNotFound
		}
		return "", err
	}
	return mapping.OwnerAccountID, nil
}

func (s *referralCodeService) Lookup(ctx context.Context, code string) (*dto.CodeLookupResponse, error) {
	code = NormalizeCode(code)
	if !ValidCodeFormat(code) {
		return nil, ErrReferralCodeFormat
	}

	_, err := s.Resolve(ctx, code)
	switch {
	case err == nil:
		return &dto.CodeLookupResponse{Code: code, Valid: true}, nil
	case errors.Is(err, ErrReferralCodeNotFound):
		// 映射缺失但账户上有该推荐码时同样视为有效
		_, err := s.repo.Account.FindByReferralCode(ctx, code)
		switch {
		case err == nil:
			return &dto.CodeLookupResponse{Code: code, Valid: true}, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return &dto.CodeLookupResponse{Code: code, Valid: false}, nil
		default:
			s.logger.Error("按账户扫描推荐码失败", zap.String("code", code), zap.Error(err))
			return nil, err
		}
	default:
		s.logger.Error("查询推荐码失败", zap.String("code", code), zap.Error(err))
		return nil, err
	}
}

// ────────────────────── HealAll ──────────────────────

func (s *referralCodeService) HealAll(ctx context.Context, batch int) (*dto.HealReport, error) {
	if batch <= 0 {
		batch = 200
	}

	report := &dto.HealReport{}
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		accounts, err := s.repo.Account.ListAfter(ctx, cursor, batch)
		if err != nil {
			s.logger.Error("批量读取账户失败", zap.String("cursor", cursor), zap.Error(err))
			return report, err
		}
		if len(accounts) == 0 {
			break
		}

		for i := range accounts {
			account := &accounts[i]
			report.Scanned++
			issued, err := s.Reconcile(ctx, account)
			if err != nil {
				report.Failed++
				s.logger.Warn("巡检修复账户失败", zap.String("account_id", account.AccountID), zap.Error(err))
				continue
			}
			if issued {
				report.CodesIssued++
			}
		}

		cursor = accounts[len(accounts)-1].AccountID
		if len(accounts) < batch {
			break
		}
	}

	s.logger.Info("推荐码巡检完成",
		zap.Int("scanned", report.Scanned),
		zap.Int("codes_issued", report.CodesIssued),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
