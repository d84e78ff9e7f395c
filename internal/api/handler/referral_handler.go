package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/service"
	"github.com/Sirtheprogrammer/innervoice/pkg/response"
)

// ReferralHandler 推荐模块 HTTP 处理器
type ReferralHandler struct {
	referralSvc service.ReferralService
	codeSvc     service.ReferralCodeService
}

// NewReferralHandler 创建 ReferralHandler
func NewReferralHandler(referralSvc service.ReferralService, codeSvc service.ReferralCodeService) *ReferralHandler {
	return &ReferralHandler{referralSvc: referralSvc, codeSvc: codeSvc}
}

// ListMine 我推荐的账户（奖励流水）
// GET /api/v1/referrals/me
func (h *ReferralHandler) ListMine(c *gin.Context) {
	accountID, ok := MustGetAccountID(c)
	if !ok {
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		handleBindError(c, err)
		return
	}

	list, total, err := h.referralSvc.ListByReferrer(c.Request.Context(), accountID, &page)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// LookupCode 校验推荐码是否可用（注册页输入时调用）
// GET /api/v1/referrals/codes/:code
func (h *ReferralHandler) LookupCode(c *gin.Context) {
	res, err := h.codeSvc.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, res)
}
