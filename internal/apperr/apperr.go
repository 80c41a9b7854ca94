package apperr

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"
)

// Kind 错误分类，按签名/审批阶段显式标记，避免靠错误字符串判断
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindPermission
	KindNotFound
	KindConflict
	KindInsufficientBalance
	KindSigning
	KindBroadcast
	KindExpiredOrRevokedKey
)

// Error 带分类的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建业务错误
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 包装底层错误
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf 获取错误分类
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var a *AmbiguousSubmissionsError
	if errors.As(err, &a) {
		return KindValidation
	}
	var b *InsufficientBalanceError
	if errors.As(err, &b) {
		return KindInsufficientBalance
	}
	return KindUnknown
}

// HTTPStatus 错误分类对应的HTTP状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInsufficientBalance:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindExpiredOrRevokedKey:
		return http.StatusConflict
	case KindSigning, KindBroadcast:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// SubmissionCandidate 候选提交，用于歧义错误返回给调用方重试
type SubmissionCandidate struct {
	SubmissionID uint      `json:"submission_id"`
	UserID       uint      `json:"user_id"`
	PRNumber     int64     `json:"pr_number"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// AmbiguousSubmissionsError 一个悬赏存在多个活跃提交且未指定提交ID
type AmbiguousSubmissionsError struct {
	BountyID   uint
	Candidates []SubmissionCandidate
}

func (e *AmbiguousSubmissionsError) Error() string {
	return fmt.Sprintf("bounty %d has %d active submissions, submission_id required", e.BountyID, len(e.Candidates))
}

// InsufficientBalanceError 资金承诺超出链上余额
type InsufficientBalanceError struct {
	Token     string
	Balance   *big.Int
	Required  *big.Int
	Shortfall *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for token %s: balance %s, required %s, shortfall %s",
		e.Token, e.Balance, e.Required, e.Shortfall)
}
