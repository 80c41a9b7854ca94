package handler

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/wozhendeai/grip-sub002/internal/logic"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BountyHandler struct {
	bountyLogic *logic.BountyLogic
	payoutLogic *logic.PayoutLogic
}

func NewBountyHandler(db *gorm.DB, payoutLogic *logic.PayoutLogic) *BountyHandler {
	return &BountyHandler{
		bountyLogic: logic.NewBountyLogic(db),
		payoutLogic: payoutLogic,
	}
}

// GetBounties 获取赏金列表
func (h *BountyHandler) GetBounties(c *gin.Context) {
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	bounties, total, err := h.bountyLogic.List(status, page, pageSize)
	if err != nil {
		FailFromError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", gin.H{
		"bounties": bounties,
		"pagination": Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	})
}

// GetBounty 获取单个赏金详情
func (h *BountyHandler) GetBounty(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的赏金ID")
		return
	}

	bounty, err := h.bountyLogic.Get(id)
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", bounty)
}

// GetBountySubmissions 获取赏金下的提交列表
func (h *BountyHandler) GetBountySubmissions(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的赏金ID")
		return
	}

	subs, err := h.bountyLogic.ListSubmissions(id)
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", subs)
}

// GetBountyPayouts 获取赏金下的支付记录
func (h *BountyHandler) GetBountyPayouts(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的赏金ID")
		return
	}

	payouts, err := h.bountyLogic.ListPayouts(id)
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", payouts)
}

// CancelBounty 取消赏金
func (h *BountyHandler) CancelBounty(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的赏金ID")
		return
	}
	actorID, err := strconv.ParseUint(c.Query("actor_user_id"), 10, 32)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "缺少actor_user_id")
		return
	}

	bounty, err := h.bountyLogic.Cancel(id, uint(actorID))
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "赏金已取消", bounty)
}

// ApproveSubmission 批准提交并触发支付
func (h *BountyHandler) ApproveSubmission(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的赏金ID")
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.payoutLogic.Approve(c.Request.Context(), logic.ApproveParams{
		BountyID:            id,
		SubmissionID:        req.SubmissionID,
		ActorUserID:         req.ActorUserID,
		UseAccessKey:        req.useAccessKey(),
		KeyAuthorizationSig: req.KeyAuthorizationSig,
	})
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "批准成功", result)
}

// RejectSubmission 驳回提交
func (h *BountyHandler) RejectSubmission(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的赏金ID")
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.payoutLogic.Reject(id, req.SubmissionID, req.ActorUserID, req.Reason)
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "已驳回", sub)
}

// DirectPay 直接支付，不经过提交流程
func (h *BountyHandler) DirectPay(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的赏金ID")
		return
	}

	var req DirectPayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		ErrorResponse(c, http.StatusBadRequest, "无效的金额")
		return
	}

	result, err := h.payoutLogic.DirectPay(c.Request.Context(), logic.DirectPayParams{
		BountyID:        id,
		PayerUserID:     req.ActorUserID,
		RecipientUserID: req.RecipientUserID,
		Amount:          amount,
		Message:         req.Message,
		UseAccessKey:    req.useAccessKey(),
	})
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "支付已创建", result)
}

func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	return uint(id), err
}
