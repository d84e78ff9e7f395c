package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Sirtheprogrammer/innervoice/internal/dto"
	"github.com/Sirtheprogrammer/innervoice/internal/service"
	"github.com/Sirtheprogrammer/innervoice/pkg/response"
)

// AccountHandler 账户模块 HTTP 处理器
type AccountHandler struct {
	accountSvc service.AccountService
}

// NewAccountHandler 创建 AccountHandler
func NewAccountHandler(accountSvc service.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// Register 开户（幂等），账户 id 取自访问令牌
// POST /api/v1/accounts/register
func (h *AccountHandler) Register(c *gin.Context) {
	accountID, ok := MustGetAccountID(c)
	if !ok {
		return
	}

	var req dto.RegisterRequest
	// 请求体可为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handleBindError(c, err)
			return
		}
	}

	res, err := h.accountSvc.Register(c.Request.Context(), accountID, req.ReferralCode)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if res.Created {
		response.Created(c, res)
		return
	}
	response.OK(c, res)
}

// GetMe 当前账户资料
// GET /api/v1/accounts/me
func (h *AccountHandler) GetMe(c *gin.Context) {
	accountID, ok := MustGetAccountID(c)
	if !ok {
		return
	}

	profile, err := h.accountSvc.GetProfile(c.Request.Context(), accountID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, profile)
}
