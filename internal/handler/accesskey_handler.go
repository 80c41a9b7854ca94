package handler

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/wozhendeai/grip-sub002/internal/chain"
	"github.com/wozhendeai/grip-sub002/internal/logic"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AccessKeyHandler struct {
	keyLogic *logic.AccessKeyLogic
	chain    *chain.Client
}

func NewAccessKeyHandler(db *gorm.DB, chainClient *chain.Client) *AccessKeyHandler {
	return &AccessKeyHandler{
		keyLogic: logic.NewAccessKeyLogic(db),
		chain:    chainClient,
	}
}

// CreateAccessKey 创建委托密钥
func (h *AccessKeyHandler) CreateAccessKey(c *gin.Context) {
	var req CreateAccessKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	limits := make(map[string]*big.Int, len(req.Limits))
	for token, amount := range req.Limits {
		v, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			ErrorResponse(c, http.StatusBadRequest, "无效的额度: "+amount)
			return
		}
		limits[token] = v
	}

	var expiresAt *time.Time
	if req.ExpiresAt != nil {
		t := time.Unix(*req.ExpiresAt, 0)
		expiresAt = &t
	}

	key, err := h.keyLogic.Create(logic.CreateAccessKeyParams{
		OwnerUserID:      &req.OwnerUserID,
		RootWallet:       req.RootWallet,
		KeyWallet:        req.KeyWallet,
		Limits:           limits,
		ExpiresAt:        expiresAt,
		ChainID:          h.chain.ChainID(),
		AuthorizationSig: req.AuthorizationSig,
	})
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "密钥创建成功", key)
}

// GetAccessKeys 获取用户的委托密钥列表
func (h *AccessKeyHandler) GetAccessKeys(c *gin.Context) {
	ownerID, err := strconv.ParseUint(c.Query("owner_user_id"), 10, 32)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "缺少owner_user_id")
		return
	}

	keys, err := h.keyLogic.ListForOwner(uint(ownerID))
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", keys)
}

// GetAccessKey 获取单个委托密钥
func (h *AccessKeyHandler) GetAccessKey(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的密钥ID")
		return
	}

	key, err := h.keyLogic.Get(id)
	if err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", key)
}

// RevokeAccessKey 吊销委托密钥，吊销不可逆
func (h *AccessKeyHandler) RevokeAccessKey(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的密钥ID")
		return
	}

	var req RevokeAccessKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.keyLogic.Get(id)
	if err != nil {
		FailFromError(c, err)
		return
	}
	if key.OwnerUserID == nil || *key.OwnerUserID != req.ActorUserID {
		ErrorResponse(c, http.StatusForbidden, "只有密钥所有者可以吊销")
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "revoked by owner"
	}
	if err := h.keyLogic.Revoke(id, reason); err != nil {
		FailFromError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "密钥已吊销", nil)
}
