package dto

// ── 账户模块 DTO ──

// RegisterRequest 注册（开户）请求，账户 id 取自访问令牌
type RegisterRequest struct {
	ReferralCode string `json:"referral_code" binding:"omitempty,max=32"`
}

// ProfileResponse 账户资料
type ProfileResponse struct {
	AccountID     string  `json:"account_id"`
	Balance       int64   `json:"balance"`
	XP            int64   `json:"xp"`
	ReferralCount int64   `json:"referral_count"`
	ReferralCode  string  `json:"referral_code"`
	ReferredBy    *string `json:"referred_by,omitempty"`
	Banned        bool    `json:"banned"`
	CreatedAt     string  `json:"created_at"`
}

// RegisterResponse 注册结果
// Created 为 false 表示账户已存在，本次调用未做任何修改
type RegisterResponse struct {
	Profile ProfileResponse `json:"profile"`
	Created bool            `json:"created"`
}

// ReferralTransactionResponse 推荐奖励流水
type ReferralTransactionResponse struct {
	TransactionID  string `json:"transaction_id"`
	ReferredUserID string `json:"referred_user_id"`
	RewardXP       int64  `json:"reward_xp"`
	RewardBalance  int64  `json:"reward_balance"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// CodeLookupResponse 推荐码查询结果
type CodeLookupResponse struct {
	Code  string `json:"code"`
	Valid bool   `json:"valid"`
}

// HealReport 推荐码巡检统计
type HealReport struct {
	Scanned     int `json:"scanned"`
	CodesIssued int `json:"codes_issued"`
	Failed      int `json:"failed"`
}
