package service

import (
	"context"
	"time"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/model"
)

// ProfileCache 账户资料缓存，由 pkg/redis.Client 实现
type ProfileCache interface {
	GetProfile(ctx context.Context, accountID string, dest interface{}) (bool, error)
	// ProfileVersion 资料版本号，每次 InvalidateProfile 递增
	ProfileVersion(ctx context.Context, accountID string) (int64, error)
	// SetProfile 仅当版本号仍为 version 时写入
	SetProfile(ctx context.Context, accountID string, profile interface{}, version int64, ttl time.Duration) error
	InvalidateProfile(ctx context.Context, accountIDs ...string) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toProfileResponse(a *model.Account) dto.ProfileResponse {
	return dto.ProfileResponse{
		AccountID:     a.AccountID,
		Balance:       a.Balance,
		XP:            a.XP,
		ReferralCount: a.ReferralCount,
		ReferralCode:  a.Code(),
		ReferredBy:    a.ReferredBy,
		Banned:        a.Banned,
		CreatedAt:     formatTime(a.CreatedAt),
	}
}

func toPayoutResponse(p *model.PayoutRequest) dto.PayoutResponse {
	resp := dto.PayoutResponse{
		PayoutID:    p.PayoutID,
		AccountID:   p.AccountID,
		Amount:      p.Amount,
		PhoneNumber: p.PhoneNumber,
		FullName:    p.FullName,
		Status:      p.Status,
		CreatedAt:   formatTime(p.CreatedAt),
	}
	if p.ProcessedAt != nil {
		s := formatTime(*p.ProcessedAt)
		resp.ProcessedAt = &s
	}
	return resp
}

func toReferralTransactionResponse(t *model.ReferralTransaction) dto.ReferralTransactionResponse {
	return dto.ReferralTransactionResponse{
		TransactionID:  t.TransactionID,
		ReferredUserID: t.ReferredUserID,
		RewardXP:       t.RewardXP,
		RewardBalance:  t.RewardBalance,
		Status:         t.Status,
		CreatedAt:      formatTime(t.CreatedAt),
	}
}

type noopCache struct{}

func (noopCache) GetProfile(context.Context, string, interface{}) (bool, error) { return false, nil }

func (noopCache) ProfileVersion(context.Context, string) (int64, error) { return 0, nil }

func (noopCache) SetProfile(context.Context, string, interface{}, int64, time.Duration) error {
	return nil
}

func (noopCache) InvalidateProfile(context.Context, ...string) error { return nil }

func orNoopCache(cache ProfileCache) ProfileCache {
	if cache == nil {
		return noopCache{}
	}
	return cache
}
