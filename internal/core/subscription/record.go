package subscription

import (
	"sync/atomic"
	"time"

	"lifekit-core/internal/core/events"
	"lifekit-core/internal/core/types"
	"lifekit-core/internal/core/weakref"
)

// Named 能自报名称的事件源（可选能力）
// 模式通知里的 owner 名优先取这里，其次回落到类型名
type Named interface {
	Name() string
}

// Categorized 能自报订阅类别的事件源（可选能力）
// 类别决定订阅数上限的归属口径
type Categorized interface {
	Category() string
}

// Record 订阅记录
// 对事件源只持非拥有引用；native 是源上真正的监听器句柄，
// 断开时解引用源再摘除
type Record struct {
	ID            string
	Event         string
	OwnerName     string
	Category      string
	GroupID       string
	Priority      types.Priority
	AutoReconnect bool
	CreatedAt     time.Time

	source weakref.Handle
	native events.ListenerID
	exempt bool

	status      atomic.Int32
	invocations atomic.Int64
}

// Status 当前订阅状态
func (r *Record) Status() types.SubscriptionStatus {
	return types.SubscriptionStatus(r.status.Load())
}

// Invocations 回调累计触发次数
func (r *Record) Invocations() int64 {
	return r.invocations.Load()
}

// markError 回调出错时标记，只从 ACTIVE 置入，保持单向推进
func (r *Record) markError() {
	r.status.CompareAndSwap(int32(types.StatusActive), int32(types.StatusError))
}

// markDisconnected 移除前的终态标记
func (r *Record) markDisconnected() {
	r.status.Store(int32(types.StatusDisconnected))
}

// View 订阅记录的只读快照，API 与 CLI 用
type View struct {
	ID            string    `json:"id"`
	Event         string    `json:"event"`
	OwnerName     string    `json:"owner_name"`
	Category      string    `json:"category"`
	GroupID       string    `json:"group_id,omitempty"`
	Priority      string    `json:"priority"`
	Status        string    `json:"status"`
	AutoReconnect bool      `json:"auto_reconnect,omitempty"`
	SourceAlive   bool      `json:"source_alive"`
	Invocations   int64     `json:"invocations"`
	CreatedAt     time.Time `json:"created_at"`
}

// view 生成记录快照
func (r *Record) view() View {
	return View{
		ID:            r.ID,
		Event:         r.Event,
		OwnerName:     r.OwnerName,
		Category:      r.Category,
		GroupID:       r.GroupID,
		Priority:      r.Priority.String(),
		Status:        r.Status().String(),
		AutoReconnect: r.AutoReconnect,
		SourceAlive:   r.source.Alive(),
		Invocations:   r.Invocations(),
		CreatedAt:     r.CreatedAt,
	}
}

// Result 批量断开的聚合结果
type Result struct {
	Success int     `json:"success"`
	Failed  int     `json:"failed"`
	Errors  []error `json:"-"`
}

// Attempted 本次批量覆盖的订阅总数
func (r Result) Attempted() int {
	return r.Success + r.Failed
}

// Group 订阅组，按组整体断开
type Group struct {
	ID                string
	ClearOnDisconnect bool

	members []string
}

// GroupView 订阅组快照
type GroupView struct {
	ID                string   `json:"id"`
	ClearOnDisconnect bool     `json:"clear_on_disconnect"`
	Members           []string `json:"members"`
}

// Criteria 订阅查找条件，零值字段不参与过滤
type Criteria struct {
	// EventPattern 事件名正则
	EventPattern string
	// Category 类别精确匹配
	Category string
	// Status 状态过滤
	Status *types.SubscriptionStatus
	// Predicate 对解引用后的事件源求值；源已被回收的记录不会命中
	Predicate func(source any) bool
}

// connectOptions 订阅建立选项
type connectOptions struct {
	category      string
	group         string
	ownerName     string
	priority      types.Priority
	autoReconnect bool
	exempt        bool
}

// ConnectOption 订阅选项
type ConnectOption func(*connectOptions)

// WithCategory 指定订阅类别，覆盖事件源自报的类别
func WithCategory(category string) ConnectOption {
	return func(o *connectOptions) {
		o.category = category
	}
}

// WithGroup 挂入订阅组，组不存在时自动创建
func WithGroup(groupID string) ConnectOption {
	return func(o *connectOptions) {
		o.group = groupID
	}
}

// WithOwnerName 指定模式通知里的 owner 名
func WithOwnerName(name string) ConnectOption {
	return func(o *connectOptions) {
		o.ownerName = name
	}
}

// WithPriority 指定批量断开时的处理优先级，缺省 Normal
func WithPriority(p types.Priority) ConnectOption {
	return func(o *connectOptions) {
		o.priority = p
	}
}

// WithAutoReconnect 标记该订阅期望在源重连后恢复
// 注册表本身不做重连，标记通过快照暴露给外部协调方
func WithAutoReconnect() ConnectOption {
	return func(o *connectOptions) {
		o.autoReconnect = true
	}
}

// WithExemptFromObserver 豁免属主观察：源被回收后记录不会自动移除，
// 只响应显式断开
func WithExemptFromObserver() ConnectOption {
	return func(o *connectOptions) {
		o.exempt = true
	}
}
