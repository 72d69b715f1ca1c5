package dispose

import (
	"context"
)

// ManagerBase 管理器基类，管理其它资源的组件嵌入它
type ManagerBase struct {
	*ResourceBase
}

// ServiceBase 服务基类，有自身生命周期的后台组件嵌入它
type ServiceBase struct {
	*ResourceBase
}

// NewManager 创建已初始化的管理器基类
func NewManager(name string, parentCtx context.Context) *ManagerBase {
	m := &ManagerBase{ResourceBase: NewResourceBase(name)}
	m.Initialize(parentCtx)
	return m
}

// NewService 创建已初始化的服务基类
func NewService(name string, parentCtx context.Context) *ServiceBase {
	s := &ServiceBase{ResourceBase: NewResourceBase(name)}
	s.Initialize(parentCtx)
	return s
}
