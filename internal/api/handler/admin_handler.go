package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/service"
	"github.com/Sirtheprogrammer/innervoice/pkg/response"
)

// AdminHandler 管理端 HTTP 处理器（审核提现、账户管理、推荐码巡检）
type AdminHandler struct {
	accountSvc service.AccountService
	payoutSvc  service.PayoutService
	exportSvc  service.ExportService
	codeSvc    service.ReferralCodeService
	healBatch  int
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(svc *service.Service, healBatch int) *AdminHandler {
	return &AdminHandler{
		accountSvc: svc.Account,
		payoutSvc:  svc.Payout,
		exportSvc:  svc.Export,
		codeSvc:    svc.ReferralCode,
		healBatch:  healBatch,
	}
}

// ────────────────────── 提现审核 ──────────────────────

// ListPendingPayouts 待审核提现（按创建时间倒序）
// GET /api/v1/admin/payouts/pending
func (h *AdminHandler) ListPendingPayouts(c *gin.Context) {
	list, err := h.payoutSvc.GetAllPendingPayouts(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, list)
}

// ApprovePayout 批准提现
// POST /api/v1/admin/payouts/:id/approve
func (h *AdminHandler) ApprovePayout(c *gin.Context) {
	payout, err := h.payoutSvc.ApprovePayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, payout)
}

// RejectPayout 驳回提现并退回余额
// POST /api/v1/admin/payouts/:id/reject
func (h *AdminHandler) RejectPayout(c *gin.Context) {
	payout, err := h.payoutSvc.RejectPayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, payout)
}

// ExportPendingPayouts 导出待审核提现
// GET /api/v1/admin/payouts/export
func (h *AdminHandler) ExportPendingPayouts(c *gin.Context) {
	buf, result, err := h.exportSvc.ExportPendingPayouts(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(result.FileName))
	if result.ArchiveKey != "" {
		c.Header("X-Archive-Key", result.ArchiveKey)
	}
	c.Data(http.StatusOK, service.XLSXContentType, buf.Bytes())
}

// ────────────────────── 账户管理 ──────────────────────

// ListAccounts 账户列表
// GET /api/v1/admin/accounts
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		handleBindError(c, err)
		return
	}

	list, total, err := h.accountSvc.List(c.Request.Context(), &page)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OKPage(c, list, total, page.GetPage(), page.GetPageSize())
}

// CountAccounts 账户总数
// GET /api/v1/admin/accounts/count
func (h *AdminHandler) CountAccounts(c *gin.Context) {
	total, err := h.accountSvc.Count(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, dto.CountResponse{Total: total})
}

// BanAccount 封禁账户
// POST /api/v1/admin/accounts/:id/ban
func (h *AdminHandler) BanAccount(c *gin.Context) {
	if err := h.accountSvc.Ban(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// UnbanAccount 解除封禁
// POST /api/v1/admin/accounts/:id/unban
func (h *AdminHandler) UnbanAccount(c *gin.Context) {
	if err := h.accountSvc.Unban(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, nil)
}

// ────────────────────── 推荐码巡检 ──────────────────────

// HealReferralCodes 立即执行一次推荐码映射巡检
// POST /api/v1/admin/referral-codes/heal
func (h *AdminHandler) HealReferralCodes(c *gin.Context) {
	report, err := h.codeSvc.HealAll(c.Request.Context(), h.healBatch)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, report)
}
