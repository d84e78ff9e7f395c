package model

import "time"

// ReferralCodeMapping 推荐码映射表，对应 referral_codes
// 已存在的映射不会被覆盖
type ReferralCodeMapping struct {
	Code           string    `gorm:"type:varchar(8);primaryKey"          json:"code"`
	OwnerAccountID string    `gorm:"type:varchar(128);not null;index"    json:"owner_account_id"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (ReferralCodeMapping) TableName() string { return "referral_codes" }

// ReferralTransactionCompleted 推荐奖励流水状态
const ReferralTransactionCompleted = "completed"

// ReferralTransaction 推荐奖励流水，对应 referral_transactions（只追加，不修改）
type ReferralTransaction struct {
	TransactionID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"transaction_id"`
	ReferrerID     string    `gorm:"type:varchar(128);not null;index"               json:"referrer_id"`
	ReferredUserID string    `gorm:"type:varchar(128);not null;uniqueIndex"         json:"referred_user_id"`
	RewardXP       int64     `gorm:"column:reward_xp;not null"                      json:"reward_xp"`
	RewardBalance  int64     `gorm:"not null"                                       json:"reward_balance"`
	Status         string    `gorm:"type:varchar(20);not null;default:'completed'"  json:"status"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ReferralTransaction) TableName() string { return "referral_transactions" }
