package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hajj-management/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// OperatorID 提取操作人 ID；服务间调用的 Token 可能不带 user_id，此时返回空串
func OperatorID(c *gin.Context) string {
	return c.GetString("user_id")
}

// MustGetUUIDParam 读取路径参数并校验为 UUID，失败时写入 400
func MustGetUUIDParam(c *gin.Context, name, label string) (string, bool) {
	id := c.Param(name)
	if id == "" {
		response.BadRequest(c, 10001, label+"ID不能为空")
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(c, 10001, label+"ID格式无效")
		return "", false
	}
	return id, true
}
