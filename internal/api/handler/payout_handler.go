package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/service"
	"github.com/Sirtheprogrammer/innervoice/pkg/response"
)

// PayoutHandler 提现模块 HTTP 处理器（账户侧）
type PayoutHandler struct {
	payoutSvc service.PayoutService
}

// NewPayoutHandler 创建 PayoutHandler
func NewPayoutHandler(payoutSvc service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

// RequestPayout 发起提现申请
// POST /api/v1/payouts
func (h *PayoutHandler) RequestPayout(c *gin.Context) {
	accountID, ok := MustGetAccountID(c)
	if !ok {
		return
	}

	var req dto.PayoutRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	payout, err := h.payoutSvc.RequestPayout(c.Request.Context(), accountID, req.Amount, req.PhoneNumber, req.FullName)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Created(c, payout)
}

// ListMine 我的提现记录
// GET /api/v1/payouts/me
func (h *PayoutHandler) ListMine(c *gin.Context) {
	accountID, ok := MustGetAccountID(c)
	if !ok {
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		handleBindError(c, err)
		return
	}

	list, total, err := h.payoutSvc.ListPayoutsByAccount(c.Request.Context(), accountID, &page)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}
