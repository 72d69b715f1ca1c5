package constants

import "time"

// HTTP头部常量
const (
	HTTPHeaderContentType = "Content-Type"
	HTTPHeaderXRequestID  = "X-Request-ID"
)

// Content-Type常量
const (
	ContentTypeJSON = "application/json"
)

// API路径常量
// APIPathV1 之后的条目是挂在 v1 子路由下的相对路径
const (
	APIPathHealthz = "/healthz"
	APIPathV1      = "/api/v1"

	APIPathResources     = "/resources"
	APIPathSubscriptions = "/subscriptions"
	APIPathGroups        = "/groups"
	APIPathStats         = "/stats"
	APIPathSettings      = "/settings"
	APIPathCleanup       = "/cleanup"
	APIPathEvents        = "/events"
)

// 响应消息常量
const (
	ResponseMsgNotFound      = "Resource not found"
	ResponseMsgInternalError = "Internal server error"
)

// API 服务器相关常量
const (
	// APIReadTimeout HTTP 请求读取超时
	APIReadTimeout = 30 * time.Second

	// APIWriteTimeout HTTP 响应写入超时
	APIWriteTimeout = 30 * time.Second

	// APIIdleTimeout keep-alive 连接空闲超时
	APIIdleTimeout = 120 * time.Second

	// WSBufferSize WebSocket 读写缓冲区大小
	WSBufferSize = 1024

	// WSEventQueueSize 单个 WebSocket 订阅端的事件队列容量，满则丢弃
	WSEventQueueSize = 64
)
