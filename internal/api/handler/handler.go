package handler

import "github.com/Sirtheprogrammer/innervoice/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Account  *AccountHandler
	Referral *ReferralHandler
	Payout   *PayoutHandler
	Admin    *AdminHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, healBatch int) *Handler {
	return &Handler{
		Account:  NewAccountHandler(svc.Account),
		Referral: NewReferralHandler(svc.Referral, svc.ReferralCode),
		Payout:   NewPayoutHandler(svc.Payout),
		Admin:    NewAdminHandler(svc, healBatch),
	}
}
