package events

import "context"

// 内部事件名
const (
	// EventError 监听器错误被重路由到的事件
	EventError = "error"

	// EventDestroyed 总线销毁时发出的终结事件
	EventDestroyed = "destroyed"
)

// ListenerID 监听器标识，总线内单调递增；0 表示未注册
type ListenerID int64

// Listener 事件监听器
// 返回错误或 panic 都会被捕获并重路由为 error 事件，不会中断其余监听器
type Listener func(args ...any) error

// AnyListener 通配监听器，接收事件名与参数
type AnyListener func(event string, args ...any) error

// Source 可订阅能力
// 订阅注册表只依赖这个窄接口判断对象是否可作为事件源
type Source interface {
	On(event string, fn Listener, opts ...Option) (ListenerID, error)
	Off(event string, id ListenerID) bool
}

// EmitError error 事件的载荷：原始事件名与监听器错误
type EmitError struct {
	Event string
	Err   error
}

// addOptions 监听器注册选项
type addOptions struct {
	signal context.Context
}

// Option 注册选项
type Option func(*addOptions)

// WithSignal 将监听器生命周期绑定到取消上下文
// ctx 取消后监听器按当前运行档位的策略移除；
// ctx 在注册时已取消的，监听器不会被注册（返回 ListenerID 0）
func WithSignal(ctx context.Context) Option {
	return func(o *addOptions) {
		o.signal = ctx
	}
}
