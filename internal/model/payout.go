package model

import "time"

// 提现状态：pending → approved | rejected，后两者为终态
const (
	PayoutStatusPending  = "pending"
	PayoutStatusApproved = "approved"
	PayoutStatusRejected = "rejected"
)

// PayoutRequest 提现申请表，对应 payout_requests
type PayoutRequest struct {
	PayoutID    string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"payout_id"`
	AccountID   string     `gorm:"type:varchar(128);not null;index"               json:"account_id"`
	Amount      int64      `gorm:"not null"                                       json:"amount"`
	PhoneNumber string     `gorm:"type:varchar(32);not null"                      json:"phone_number"`
	FullName    string     `gorm:"type:varchar(100);not null"                     json:"full_name"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (PayoutRequest) TableName() string { return "payout_requests" }

// IsPending 是否仍待审核
func (p *PayoutRequest) IsPending() bool { return p.Status == PayoutStatusPending }
