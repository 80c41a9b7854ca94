package handler

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindJSON(t *testing.T, body string, out interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	require.NoError(t, c.ShouldBindJSON(out))
}

func TestApproveRequestDefaultsToAccessKey(t *testing.T) {
	// 省略 use_access_key 时默认尝试委托密钥自动签名
	var req ApproveRequest
	bindJSON(t, `{"actor_user_id": 1}`, &req)
	assert.True(t, req.useAccessKey())

	var optOut ApproveRequest
	bindJSON(t, `{"actor_user_id": 1, "use_access_key": false}`, &optOut)
	assert.False(t, optOut.useAccessKey())

	var optIn ApproveRequest
	bindJSON(t, `{"actor_user_id": 1, "use_access_key": true}`, &optIn)
	assert.True(t, optIn.useAccessKey())
}

func TestDirectPayRequestDefaultsToAccessKey(t *testing.T) {
	var req DirectPayRequest
	bindJSON(t, `{"actor_user_id": 1, "recipient_user_id": 2, "amount": "100"}`, &req)
	assert.True(t, req.useAccessKey())

	var optOut DirectPayRequest
	bindJSON(t, `{"actor_user_id": 1, "recipient_user_id": 2, "amount": "100", "use_access_key": false}`, &optOut)
	assert.False(t, optOut.useAccessKey())
}
