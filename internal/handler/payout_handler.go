package handler

import (
	"net/http"

	"github.com/wozhendeai/grip-sub002/internal/logic"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	payoutLogic *logic.PayoutLogic
}

func NewPayoutHandler(payoutLogic *logic.PayoutLogic) *PayoutHandler {
	return &PayoutHandler{payoutLogic: payoutLogic}
}

// GetPayout 获取单笔支付详情
func (h *PayoutHandler) GetPayout(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的支付ID")
		return
	}

	payout, err := h.payoutLogic.GetPayout(id)
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", payout)
}
