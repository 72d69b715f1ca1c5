package lifecycle

import (
	"context"
	"time"

	"lifekit-core/internal/core/types"
	"lifekit-core/internal/core/weakref"
)

// ReleaseFunc 资源释放回调，同步异步统一走这个签名
// 返回错误表示释放失败；资源记录无论成败都已移除，不会重试
type ReleaseFunc func(ctx context.Context) error

// Record 受管资源记录
// 每个 ID 恰好对应一条记录，移除恰好一次
type Record struct {
	ID         string
	Type       types.ResourceType
	Priority   types.Priority
	Name       string
	CreatedAt  time.Time
	Persistent bool
	Metadata   map[string]string

	owner   weakref.Handle
	release ReleaseFunc
}

// View 资源记录的只读快照，API 与 CLI 用
type View struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Priority   string            `json:"priority"`
	Name       string            `json:"name,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Persistent bool              `json:"persistent"`
	OwnerAlive bool              `json:"owner_alive"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// view 生成记录快照
func (r *Record) view() View {
	return View{
		ID:         r.ID,
		Type:       string(r.Type),
		Priority:   r.Priority.String(),
		Name:       r.Name,
		CreatedAt:  r.CreatedAt,
		Persistent: r.Persistent,
		OwnerAlive: r.owner.Alive(),
		Metadata:   r.Metadata,
	}
}

// TypeCount 单类型批量清理计数
type TypeCount struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Result 批量清理结果，全量结算：每条记录要么成功要么失败
type Result struct {
	Success int                              `json:"success"`
	Failed  int                              `json:"failed"`
	PerType map[types.ResourceType]TypeCount `json:"per_type"`
	Errors  []error                          `json:"-"`
}

// Attempted 本次批量覆盖的记录总数
func (r Result) Attempted() int {
	return r.Success + r.Failed
}

// trackOptions 资源登记选项
type trackOptions struct {
	priority   types.Priority
	name       string
	persistent bool
	metadata   map[string]string
}

// TrackOption 登记选项
type TrackOption func(*trackOptions)

// WithPriority 指定清理优先级，缺省 Normal
func WithPriority(p types.Priority) TrackOption {
	return func(o *trackOptions) {
		o.priority = p
	}
}

// WithName 指定展示名
func WithName(name string) TrackOption {
	return func(o *trackOptions) {
		o.name = name
	}
}

// WithPersistent 标记为常驻资源：不注册属主观察，永不自动释放，
// 仅响应显式 Cleanup/CleanupAll
func WithPersistent() TrackOption {
	return func(o *trackOptions) {
		o.persistent = true
	}
}

// WithMetadata 附加元数据
func WithMetadata(meta map[string]string) TrackOption {
	return func(o *trackOptions) {
		o.metadata = meta
	}
}
