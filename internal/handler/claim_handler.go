package handler

import (
	"net/http"

	"github.com/wozhendeai/grip-sub002/internal/logic"

	"github.com/gin-gonic/gin"
)

type ClaimHandler struct {
	claimLogic *logic.ClaimLogic
}

func NewClaimHandler(claimLogic *logic.ClaimLogic) *ClaimHandler {
	return &ClaimHandler{claimLogic: claimLogic}
}

// Claim 收款人提交钱包地址领取支付
func (h *ClaimHandler) Claim(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		ErrorResponse(c, http.StatusBadRequest, "缺少claim token")
		return
	}

	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.claimLogic.Claim(c.Request.Context(), token, req.WalletAddress)
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "领取成功", result)
}
