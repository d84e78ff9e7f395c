package model

// Account 账户表，对应 accounts
// AccountID 由外部身份提供方签发；balance/xp/referral_count 只通过原子增减修改
type Account struct {
	AccountID     string  `gorm:"type:varchar(128);primaryKey"   json:"account_id"`
	Balance       int64   `gorm:"not null;default:0"             json:"balance"`
	XP            int64   `gorm:"column:xp;not null;default:0"   json:"xp"`
	ReferralCount int64   `gorm:"not null;default:0"             json:"referral_count"`
	ReferralCode  *string `gorm:"type:varchar(8);uniqueIndex"    json:"referral_code,omitempty"`
	ReferredBy    *string `gorm:"type:varchar(128);index"        json:"referred_by,omitempty"`
	Banned        bool    `gorm:"not null;default:false"         json:"banned"`
	BaseModel
}

// TableName 指定表名
func (Account) TableName() string { return "accounts" }

// Code 推荐码，未分配时返回空串
func (a *Account) Code() string {
	if a.ReferralCode == nil {
		return ""
	}
	return *a.ReferralCode
}
