package api

import (
	"encoding/json"
	"net/http"

	"lifekit-core/internal/constants"
)

// ResponseData 统一响应结构
type ResponseData struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResponseHelper 响应辅助工具
// 提供统一的API响应格式
type ResponseHelper struct{}

// NewResponseHelper 创建响应辅助工具
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 返回成功响应
func (h *ResponseHelper) Success(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set(constants.HTTPHeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)

	response := ResponseData{
		Success: true,
		Data:    data,
	}
	json.NewEncoder(w).Encode(response)
}

// Error 返回错误响应
func (h *ResponseHelper) Error(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(constants.HTTPHeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)

	response := ResponseData{
		Success: false,
		Error:   message,
	}
	json.NewEncoder(w).Encode(response)
}
