// Package types 定义跨组件共享的基础枚举类型
// lifecycle、subscription、events、api 等包都依赖这里的定义，
// 单独成包以避免环形依赖
package types

import "strings"

// Priority 清理优先级
// 数值越大越紧急，批量释放时按降序处理
type Priority int

const (
	PriorityDefer    Priority = 0
	PriorityLow      Priority = 25
	PriorityNormal   Priority = 50
	PriorityHigh     Priority = 75
	PriorityCritical Priority = 100
)

func (p Priority) String() string {
	switch p {
	case PriorityDefer:
		return "defer"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid 判断是否为已定义的优先级档位
func (p Priority) Valid() bool {
	switch p {
	case PriorityDefer, PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// ParsePriority 按名称解析优先级，大小写不敏感
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "defer":
		return PriorityDefer, true
	case "low":
		return PriorityLow, true
	case "normal":
		return PriorityNormal, true
	case "high":
		return PriorityHigh, true
	case "critical":
		return PriorityCritical, true
	default:
		return PriorityNormal, false
	}
}

// ResourceType 资源类型
type ResourceType string

// 内置类型；类型集合开放，注册默认释放函数即可引入新类型
const (
	ResourceTimer        ResourceType = "timer"
	ResourceSubscription ResourceType = "subscription"
	ResourceEffect       ResourceType = "effect"
	ResourceFile         ResourceType = "file"
)

// MustRunNow 判断该类型在属主失联时是否必须立即释放
// 定时器与订阅延迟释放会让仍在触发的活跃副作用漏过一个空闲周期
func (t ResourceType) MustRunNow() bool {
	return t == ResourceTimer || t == ResourceSubscription
}

// SubscriptionStatus 订阅状态，单向推进：ACTIVE → DISCONNECTED → 移除
type SubscriptionStatus int

const (
	StatusActive SubscriptionStatus = iota
	StatusDisconnected
	StatusError
)

func (s SubscriptionStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Profile 运行档位
// fast：低延迟环境，大批量、立即移除；conservative：退化环境，小批量、
// 限速释放、带兜底时限的监听器移除
type Profile string

const (
	ProfileFast         Profile = "fast"
	ProfileConservative Profile = "conservative"
)

// ParseProfile 解析档位名称，未知值回落到 conservative
func ParseProfile(s string) Profile {
	if strings.EqualFold(strings.TrimSpace(s), string(ProfileFast)) {
		return ProfileFast
	}
	return ProfileConservative
}

// CleanupTrigger 清理触发来源，用于日志与遥测标签
type CleanupTrigger string

const (
	TriggerExplicit  CleanupTrigger = "explicit"
	TriggerBulk      CleanupTrigger = "bulk"
	TriggerOwnerGone CleanupTrigger = "owner_gone"
	TriggerShutdown  CleanupTrigger = "shutdown"
)
