package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sirtheprogrammer/innervoice/internal/service"
	pkgerrors "github.com/Sirtheprogrammer/innervoice/pkg/errors"
	"github.com/Sirtheprogrammer/innervoice/pkg/response"
)

// handleBindError 请求参数绑定失败，details 携带具体字段错误
func handleBindError(c *gin.Context, err error) {
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
}

// handleServiceError 将业务错误映射为 HTTP 响应
//
//	校验错误 → 400 | 不存在 → 404 | 封禁 → 403
//	余额不足 / 非待审核 → 409 | 事务冲突重试耗尽 → 503
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.BadRequest(c, 10001, err.Error())

	case errors.Is(err, service.ErrAccountNotFound):
		response.NotFound(c, 20001, "账户不存在")
	case errors.Is(err, service.ErrAccountBanned):
		response.Forbidden(c, 20002, "账户已被封禁")

	case errors.Is(err, service.ErrReferralCodeNotFound):
		response.NotFound(c, 21001, "推荐码不存在")
	case errors.Is(err, service.ErrCodeIssueExhausted):
		response.ServiceUnavailable(c, 21002, "推荐码分配繁忙，请稍后重试")

	case errors.Is(err, service.ErrInsufficientBalance):
		response.Conflict(c, 22001, "余额不足")
	case errors.Is(err, service.ErrPayoutNotFound):
		response.NotFound(c, 22002, "提现申请不存在")
	case errors.Is(err, service.ErrPayoutNotPending):
		response.Conflict(c, 22003, "只能处理待审核的提现申请")

	case errors.Is(err, service.ErrExportNoPending):
		response.NotFound(c, 23001, "暂无待审核的提现申请")

	case errors.Is(err, pkgerrors.ErrTxConflict):
		response.ServiceUnavailable(c, 10006, "系统繁忙，请稍后重试")

	default:
		response.InternalError(c)
	}
}
