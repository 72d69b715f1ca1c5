// Package safe 守护 Goroutine：统一的 panic 恢复与运行计数
//
// 所有后台 Goroutine 经这里启动，panic 恢复后记录堆栈，
// 计数经 GetStats 汇入遥测快照
package safe

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	corelog "lifekit-core/internal/core/log"
)

// Manager Goroutine 计数器
type Manager struct {
	activeCount atomic.Int64 // 当前活跃数量
	totalCount  atomic.Int64 // 累计创建数量
	panicCount  atomic.Int64 // panic 次数
}

var globalManager = &Manager{}

// Stats Goroutine 统计快照
type Stats struct {
	Active     int64
	Total      int64
	PanicCount int64
}

// GetStats 读取统计快照
func GetStats() Stats {
	return Stats{
		Active:     globalManager.activeCount.Load(),
		Total:      globalManager.totalCount.Load(),
		PanicCount: globalManager.panicCount.Load(),
	}
}

// spawn 计数并启动 Goroutine，panic 恢复后记录堆栈
func spawn(name string, body func()) {
	globalManager.totalCount.Add(1)
	globalManager.activeCount.Add(1)

	go func() {
		defer func() {
			globalManager.activeCount.Add(-1)
			if r := recover(); r != nil {
				globalManager.panicCount.Add(1)
				corelog.Errorf("SafeGo[%s]: panic recovered: %v\n%s", name, r, debug.Stack())
			}
		}()
		body()
	}()
}

// Go 启动带 panic 恢复的 Goroutine，name 用于日志定位
func Go(name string, fn func()) {
	spawn(name, fn)
}

// GoWithContext 带 context 的安全 Goroutine
// fn 应监听 ctx.Done() 自行退出
func GoWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	spawn(name, func() { fn(ctx) })
}

// GoLoop 循环执行 fn 直到 ctx 取消，适合常驻后台任务
// 迭代返回错误只记日志不中断循环，panic 恢复后整个循环退出
func GoLoop(ctx context.Context, name string, fn func(ctx context.Context) error) {
	spawn(name, func() {
		for {
			select {
			case <-ctx.Done():
				corelog.Debugf("SafeGo[%s]: context cancelled, exiting loop", name)
				return
			default:
				if err := fn(ctx); err != nil {
					corelog.Warnf("SafeGo[%s]: loop iteration error: %v", name, err)
				}
			}
		}
	})
}
