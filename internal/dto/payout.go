package dto

// ── 提现模块 DTO ──

// PayoutRequestBody 提现申请
// 金额下限与必填项由服务层校验
type PayoutRequestBody struct {
	Amount      int64  `json:"amount"       binding:"min=0"`
	PhoneNumber string `json:"phone_number" binding:"max=32"`
	FullName    string `json:"full_name"    binding:"max=100"`
}

// PayoutResponse 提现申请信息
type PayoutResponse struct {
	PayoutID    string  `json:"payout_id"`
	AccountID   string  `json:"account_id"`
	Amount      int64   `json:"amount"`
	PhoneNumber string  `json:"phone_number"`
	FullName    string  `json:"full_name"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}
