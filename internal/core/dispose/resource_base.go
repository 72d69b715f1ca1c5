package dispose

import (
	"context"
)

// ResourceBase 资源基类，长生命周期组件嵌入它获得统一的释放语义
// 嵌入方先 NewResourceBase 再 Initialize，释放走 CloseWithError
type ResourceBase struct {
	Dispose
	name string
}

// NewResourceBase 创建资源基类
func NewResourceBase(name string) *ResourceBase {
	return &ResourceBase{
		name: name,
	}
}

// Initialize 绑定父上下文并挂接默认清理回调
func (r *ResourceBase) Initialize(parentCtx context.Context) {
	r.SetCtxWithSelfOnClose(parentCtx, r.onClose)
}

func (r *ResourceBase) onClose() error {
	Infof("%s resources cleaned up", r.name)
	return nil
}

// GetName 资源名称，注册与日志用
func (r *ResourceBase) GetName() string {
	return r.name
}
