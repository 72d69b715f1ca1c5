package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/metrics"
	"lifekit-core/internal/core/safe"
	"lifekit-core/internal/core/timersvc"
	"lifekit-core/internal/core/types"

	"golang.org/x/time/rate"
)

// queueEntry 待释放条目
type queueEntry struct {
	id       string
	release  ReleaseFunc
	priority types.Priority
}

// SchedulerConfig 延迟释放调度器配置
type SchedulerConfig struct {
	// Profile 初始运行档位
	Profile types.Profile
	// FastBatch fast 档位单批条目数
	FastBatch int
	// SlowBatch conservative 档位单批条目数
	SlowBatch int
	// FastTick fast 档位批次间隔
	FastTick time.Duration
	// SlowTick conservative 档位批次间隔
	SlowTick time.Duration
	// ReleaseRate conservative 档位每秒释放上限
	ReleaseRate float64
}

// Scheduler 延迟释放调度器
// 低优先级的属主失联释放进这里排队，按档位决定批量与节奏；
// 队列非空时持续自我调度，排空即停
type Scheduler struct {
	*dispose.ResourceBase

	mu        sync.Mutex
	queue     []queueEntry
	running   bool
	timerID   string
	limiter   *rate.Limiter
	fastBatch int
	slowBatch int

	fastTick time.Duration
	slowTick time.Duration

	profile  atomic.Value
	draining atomic.Bool
	inflight sync.WaitGroup

	timers  *timersvc.Service
	metrics metrics.Metrics
	logger  log.Logger
}

// NewScheduler 创建调度器，timers 驱动批次节奏，不可为 nil
func NewScheduler(parentCtx context.Context, cfg *SchedulerConfig, timers *timersvc.Service, m metrics.Metrics) (*Scheduler, error) {
	if timers == nil {
		return nil, coreerrors.NewValidationError("timers", "timer service is required")
	}
	if cfg == nil {
		cfg = &SchedulerConfig{}
	}
	fastBatch := cfg.FastBatch
	if fastBatch <= 0 {
		fastBatch = constants.FastBatchSize
	}
	slowBatch := cfg.SlowBatch
	if slowBatch <= 0 {
		slowBatch = constants.ConservativeBatchSize
	}
	fastTick := cfg.FastTick
	if fastTick <= 0 {
		fastTick = constants.FastTickInterval
	}
	slowTick := cfg.SlowTick
	if slowTick <= 0 {
		slowTick = constants.ConservativeTickInterval
	}
	releaseRate := cfg.ReleaseRate
	if releaseRate <= 0 {
		releaseRate = constants.DefaultReleaseRate
	}

	s := &Scheduler{
		ResourceBase: dispose.NewResourceBase("CleanupScheduler"),
		fastBatch:    fastBatch,
		slowBatch:    slowBatch,
		fastTick:     fastTick,
		slowTick:     slowTick,
		limiter:      newReleaseLimiter(releaseRate),
		timers:       timers,
		metrics:      m,
		logger:       log.WithComponent("lifecycle.scheduler"),
	}
	s.profile.Store(types.ParseProfile(string(cfg.Profile)))
	s.ResourceBase.Initialize(parentCtx)
	s.AddCleanHandler(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
		defer cancel()
		return s.Shutdown(ctx)
	})
	return s, nil
}

// newReleaseLimiter 突发容量随速率收敛，小速率下不放突发
func newReleaseLimiter(perSec float64) *rate.Limiter {
	burst := int(perSec)
	if burst > constants.DefaultReleaseBurst {
		burst = constants.DefaultReleaseBurst
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// Enqueue 入队一条延迟释放
// 调度器已关闭时就地执行，资源不因关闭时序而泄漏
func (s *Scheduler) Enqueue(id string, release ReleaseFunc, priority types.Priority) {
	if release == nil {
		s.logger.Warnf("enqueue without release function for %s, ignored", id)
		return
	}
	if s.IsClosed() {
		s.logger.Warnf("scheduler closed, releasing %s inline", id)
		s.exec(queueEntry{id: id, release: release, priority: priority})
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, queueEntry{id: id, release: release, priority: priority})
	depth := len(s.queue)
	s.ensureTickLocked()
	s.mu.Unlock()

	metrics.SetQueueDepth(s.metrics, float64(depth))
}

// ensureTickLocked 队列活动时保证有下一次批处理被调度，调用方持锁
func (s *Scheduler) ensureTickLocked() {
	if s.running || s.draining.Load() {
		return
	}
	id, err := s.timers.ScheduleOnce(s.tickInterval(), s.tick)
	if err != nil {
		s.logger.WithError(err).Warnf("schedule cleanup tick failed")
		return
	}
	s.running = true
	s.timerID = id
}

// tick 执行一批释放，按当前档位取批量与节奏
func (s *Scheduler) tick() {
	s.mu.Lock()
	s.timerID = ""
	if s.draining.Load() {
		// 排空接管了队列，本批让路
		s.running = false
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	defer s.inflight.Done()
	sortByPriority(s.queue)
	n := s.batchSize()
	if n > len(s.queue) {
		n = len(s.queue)
	}
	batch := make([]queueEntry, n)
	copy(batch, s.queue[:n])
	rest := make([]queueEntry, len(s.queue)-n)
	copy(rest, s.queue[n:])
	s.queue = rest
	conservative := s.Profile() == types.ProfileConservative
	limiter := s.limiter
	s.mu.Unlock()

	executed := 0
	var leftover []queueEntry
	for i, e := range batch {
		// conservative 档位限速：令牌耗尽时剩余条目留在队列
		if conservative && !limiter.Allow() {
			leftover = batch[i:]
			break
		}
		s.exec(e)
		executed++
	}
	if executed > 0 {
		metrics.RecordBatch(s.metrics, float64(executed))
	}

	s.mu.Lock()
	if len(leftover) > 0 {
		s.queue = append(append([]queueEntry{}, leftover...), s.queue...)
	}
	depth := len(s.queue)
	s.running = false
	if depth > 0 {
		s.ensureTickLocked()
	}
	s.mu.Unlock()

	metrics.SetQueueDepth(s.metrics, float64(depth))
}

// exec 执行单条释放，panic 与错误都不中断批次
func (s *Scheduler) exec(e queueEntry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField(constants.LogFieldResourceID, e.id).Errorf("release panic: %v", r)
		}
	}()
	if err := e.release(s.Ctx()); err != nil {
		s.logger.WithError(err).WithField(constants.LogFieldResourceID, e.id).Warnf("deferred release failed")
	}
}

// Shutdown 同步排空整个队列，受 ctx 限界
// 排空保证任何已入队的资源不会越过停机存活
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer s.draining.Store(false)

	s.mu.Lock()
	if s.timerID != "" {
		s.timers.Cancel(s.timerID)
		s.timerID = ""
	}
	s.running = false
	sortByPriority(s.queue)
	s.mu.Unlock()

	// 等在途批次结束，避免条目越过排空仍在执行
	if err := s.waitInflight(ctx); err != nil {
		return err
	}

	drained := 0
	for {
		if err := ctx.Err(); err != nil {
			s.mu.Lock()
			remaining := len(s.queue)
			s.mu.Unlock()
			if remaining == 0 {
				break
			}
			metrics.SetQueueDepth(s.metrics, float64(remaining))
			code := coreerrors.CodeTimeout
			if errors.Is(err, context.Canceled) {
				code = coreerrors.CodeCancelled
			}
			return coreerrors.Wrapf(err, code, "shutdown drain interrupted, %d entries remain", remaining)
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			break
		}
		e := s.queue[0]
		s.queue = append([]queueEntry{}, s.queue[1:]...)
		s.mu.Unlock()

		s.exec(e)
		drained++
	}

	metrics.SetQueueDepth(s.metrics, 0)
	if drained > 0 {
		s.logger.Infof("cleanup queue drained, %d entries released", drained)
	}
	return nil
}

// waitInflight 等待在途批次执行完毕，受 ctx 限界
func (s *Scheduler) waitInflight(ctx context.Context) error {
	done := make(chan struct{})
	safe.Go("lifecycle.scheduler.drain-wait", func() {
		s.inflight.Wait()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := s.PendingCount()
		code := coreerrors.CodeTimeout
		if errors.Is(ctx.Err(), context.Canceled) {
			code = coreerrors.CodeCancelled
		}
		return coreerrors.Wrapf(ctx.Err(), code, "shutdown drain interrupted, %d entries remain", remaining)
	}
}

// PendingCount 当前排队条目数
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// SetProfile 切换运行档位，下一批起生效
func (s *Scheduler) SetProfile(p types.Profile) {
	s.profile.Store(p)
}

// Profile 当前运行档位
func (s *Scheduler) Profile() types.Profile {
	return s.profile.Load().(types.Profile)
}

// SetBatchSizes 覆盖批量大小，非正值忽略对应档位
func (s *Scheduler) SetBatchSizes(fast, slow int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fast > 0 {
		s.fastBatch = fast
	}
	if slow > 0 {
		s.slowBatch = slow
	}
}

// SetReleaseRate 覆盖 conservative 档位的释放速率
func (s *Scheduler) SetReleaseRate(perSec float64) error {
	if perSec <= 0 {
		return coreerrors.NewValidationError("perSec", "release rate must be positive")
	}
	s.mu.Lock()
	s.limiter = newReleaseLimiter(perSec)
	s.mu.Unlock()
	return nil
}

// Dispose 实现 Disposable
func (s *Scheduler) Dispose() error {
	return s.CloseWithError()
}

// batchSize 按档位取批量，调用方持锁
func (s *Scheduler) batchSize() int {
	if s.Profile() == types.ProfileFast {
		return s.fastBatch
	}
	return s.slowBatch
}

// tickInterval 按档位取批次间隔
func (s *Scheduler) tickInterval() time.Duration {
	if s.Profile() == types.ProfileFast {
		return s.fastTick
	}
	return s.slowTick
}

// sortByPriority 高优先级在前，同级保持入队顺序
func sortByPriority(entries []queueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority > entries[j].priority
	})
}

var _ dispose.Disposable = (*Scheduler)(nil)
