package timersvc

import (
	"context"
	"sync"
	"time"

	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/idgen"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/safe"

	"github.com/benbjohnson/clock"
)

// timerEntry 单个定时任务
type timerEntry struct {
	id        string
	repeating bool
	stop      func()
}

// Service 定时任务服务
// 统一封装一次性与周期性定时器，注入 mock 时钟即可做确定性测试
type Service struct {
	*dispose.ServiceBase

	mu     sync.Mutex
	timers map[string]*timerEntry
	gen    idgen.IDGenerator[string]

	clk    clock.Clock
	logger log.Logger
}

// NewService 创建定时任务服务，clk 为 nil 时使用真实时钟
func NewService(parentCtx context.Context, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.New()
	}
	s := &Service{
		ServiceBase: dispose.NewService("TimerService", parentCtx),
		timers:      make(map[string]*timerEntry),
		gen:         idgen.NewSequenceGenerator(constants.IDPrefixTimer),
		clk:         clk,
		logger:      log.WithComponent("timersvc"),
	}
	s.AddCleanHandler(s.cancelAll)
	return s
}

// Clock 返回服务使用的时钟
func (s *Service) Clock() clock.Clock {
	return s.clk
}

// ScheduleOnce 注册延迟 delay 后执行一次的任务
func (s *Service) ScheduleOnce(delay time.Duration, fn func()) (string, error) {
	if fn == nil {
		return "", coreerrors.NewValidationError("fn", "timer callback is nil")
	}
	if s.IsClosed() {
		return "", coreerrors.New(coreerrors.CodeResourceClosed, "timer service is closed")
	}

	id, err := s.gen.Generate()
	if err != nil {
		return "", err
	}

	guarded := s.guard(id, fn)
	timer := s.clk.AfterFunc(delay, func() {
		s.remove(id)
		guarded()
	})

	s.mu.Lock()
	s.timers[id] = &timerEntry{id: id, stop: func() { timer.Stop() }}
	s.mu.Unlock()
	return id, nil
}

// ScheduleRepeating 注册按 interval 周期执行的任务
func (s *Service) ScheduleRepeating(interval time.Duration, fn func()) (string, error) {
	if fn == nil {
		return "", coreerrors.NewValidationError("fn", "timer callback is nil")
	}
	if interval <= 0 {
		return "", coreerrors.NewValidationError("interval", "interval must be positive")
	}
	if s.IsClosed() {
		return "", coreerrors.New(coreerrors.CodeResourceClosed, "timer service is closed")
	}

	id, err := s.gen.Generate()
	if err != nil {
		return "", err
	}

	tickCtx, cancel := context.WithCancel(s.Ctx())
	guarded := s.guard(id, fn)

	s.mu.Lock()
	s.timers[id] = &timerEntry{id: id, repeating: true, stop: cancel}
	s.mu.Unlock()

	safe.GoWithContext(tickCtx, "timersvc.repeat."+id, func(ctx context.Context) {
		ticker := s.clk.Ticker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				guarded()
			}
		}
	})
	return id, nil
}

// Cancel 取消定时任务，任务不存在或已执行返回 false
func (s *Service) Cancel(id string) bool {
	s.mu.Lock()
	entry, exists := s.timers[id]
	if exists {
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if !exists {
		return false
	}
	entry.stop()
	return true
}

// ActiveCount 当前待执行的任务数
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Dispose 实现 Disposable
func (s *Service) Dispose() error {
	return s.CloseWithError()
}

// guard 包裹回调，吞掉 panic 避免破坏触发 goroutine
func (s *Service) guard(id string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithField(constants.LogFieldError, r).Errorf("timer callback panic: %s", id)
			}
		}()
		fn()
	}
}

// remove 删除已触发的一次性任务
func (s *Service) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, id)
}

// cancelAll 关闭时取消所有未执行任务
func (s *Service) cancelAll() error {
	s.mu.Lock()
	entries := make([]*timerEntry, 0, len(s.timers))
	for _, e := range s.timers {
		entries = append(entries, e)
	}
	s.timers = make(map[string]*timerEntry)
	s.mu.Unlock()

	for _, e := range entries {
		e.stop()
	}
	s.logger.Debugf("cancelled %d pending timers", len(entries))
	return nil
}

// 编译时接口断言
var _ dispose.Disposable = (*Service)(nil)
