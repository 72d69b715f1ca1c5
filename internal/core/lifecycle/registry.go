package lifecycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/idgen"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/metrics"
	"lifekit-core/internal/core/types"
	"lifekit-core/internal/core/weakref"

	"golang.org/x/sync/errgroup"
)

// Registry 资源注册表
// 登记资源的释放函数与属主句柄；属主失联时按优先级决定立即释放
// 还是交给调度器延迟释放。记录从 map 移除即为释放权转移点，
// 显式清理与属主回收回调不会对同一条记录各释放一次
type Registry struct {
	*dispose.ResourceBase

	mu       sync.RWMutex
	records  map[string]*Record
	byType   map[types.ResourceType]int
	typeCaps map[types.ResourceType]int
	handlers map[types.ResourceType]ReleaseFunc

	gen       *idgen.SequenceGenerator
	observer  weakref.Observer
	scheduler *Scheduler
	metrics   metrics.Metrics
	logger    log.Logger
}

// RegistryConfig 注册表配置
type RegistryConfig struct {
	// Observer 属主观察器，nil 表示禁用自动释放（注册表成为唯一所有者）
	Observer weakref.Observer
	// Scheduler 延迟释放调度器，nil 表示属主失联一律立即释放
	Scheduler *Scheduler
	// TypeCaps 按资源类型的数量上限，0 或缺失表示不限
	TypeCaps map[types.ResourceType]int
}

// NewRegistry 创建资源注册表
func NewRegistry(parentCtx context.Context, cfg *RegistryConfig, m metrics.Metrics) *Registry {
	if cfg == nil {
		cfg = &RegistryConfig{}
	}
	r := &Registry{
		ResourceBase: dispose.NewResourceBase("ResourceRegistry"),
		records:      make(map[string]*Record),
		byType:       make(map[types.ResourceType]int),
		typeCaps:     make(map[types.ResourceType]int),
		handlers:     make(map[types.ResourceType]ReleaseFunc),
		gen:          idgen.NewSequenceGenerator(constants.IDPrefixResource),
		observer:     cfg.Observer,
		scheduler:    cfg.Scheduler,
		metrics:      m,
		logger:       log.WithComponent("lifecycle.registry"),
	}
	for typ, limit := range cfg.TypeCaps {
		r.typeCaps[typ] = limit
	}
	r.ResourceBase.Initialize(parentCtx)
	r.AddCleanHandler(r.drainOnClose)
	return r
}

// Track 登记 owner 持有的一项资源，owner 被回收后资源自动释放
// release 为 nil 时回落到 RegisterHandler 注册的类型默认处理器
func Track[T any](r *Registry, owner *T, release ReleaseFunc, typ types.ResourceType, opts ...TrackOption) (string, error) {
	if owner == nil {
		return "", coreerrors.NewValidationError("owner", "owner is required")
	}
	return r.TrackHandle(weakref.Make(owner), release, typ, opts...)
}

// TrackHandle 以显式句柄登记资源，供强句柄或自定义句柄使用
func (r *Registry) TrackHandle(h weakref.Handle, release ReleaseFunc, typ types.ResourceType, opts ...TrackOption) (string, error) {
	if r.IsClosed() {
		return "", coreerrors.New(coreerrors.CodeResourceClosed, "resource registry is closed")
	}
	if h == nil {
		return "", coreerrors.NewValidationError("handle", "owner handle is required")
	}
	if typ == "" {
		return "", coreerrors.NewValidationError("type", "resource type is required")
	}

	o := trackOptions{priority: types.PriorityNormal}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.priority.Valid() {
		return "", coreerrors.NewValidationError("priority", "unknown priority level")
	}

	if release == nil {
		r.mu.RLock()
		release = r.handlers[typ]
		r.mu.RUnlock()
		if release == nil {
			return "", coreerrors.Newf(coreerrors.CodeConfigError, "no release handler registered for type %q", typ)
		}
	}

	id, err := r.gen.Generate()
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeInternal, "generate resource id failed")
	}

	rec := &Record{
		ID:         id,
		Type:       typ,
		Priority:   o.priority,
		Name:       o.name,
		CreatedAt:  time.Now(),
		Persistent: o.persistent,
		Metadata:   o.metadata,
		owner:      h,
		release:    release,
	}

	r.mu.Lock()
	if limit := r.typeCaps[typ]; limit > 0 && r.byType[typ] >= limit {
		r.mu.Unlock()
		return "", coreerrors.NewLimitError(string(typ), int64(limit))
	}
	r.records[id] = rec
	r.byType[typ]++
	r.mu.Unlock()

	// 先入表再注册观察：属主已死亡时回调同步触发，能按正常路径找到记录
	if !o.persistent && r.observer != nil {
		if err := r.observer.Observe(id, h, func() { r.onOwnerUnreachable(id) }); err != nil {
			r.mu.Lock()
			r.removeLocked(id)
			r.mu.Unlock()
			return "", coreerrors.Wrap(err, coreerrors.CodeInternal, "register ownership observer failed")
		}
	}

	metrics.RecordTracked(r.metrics, string(typ))
	metrics.SetTracked(r.metrics, float64(r.TrackedCount()))
	r.logger.WithField(constants.LogFieldResourceID, id).Debugf("tracked %s resource (priority=%s persistent=%v)", typ, o.priority, o.persistent)
	return id, nil
}

// RegisterHandler 注册类型默认释放处理器
func (r *Registry) RegisterHandler(typ types.ResourceType, release ReleaseFunc) error {
	if typ == "" {
		return coreerrors.NewValidationError("type", "resource type is required")
	}
	if release == nil {
		return coreerrors.NewValidationError("release", "release handler is required")
	}
	r.mu.Lock()
	r.handlers[typ] = release
	r.mu.Unlock()
	return nil
}

// SetTypeCap 设置类型数量上限，0 表示不限；只约束后续登记
func (r *Registry) SetTypeCap(typ types.ResourceType, cap int) {
	r.mu.Lock()
	if cap <= 0 {
		delete(r.typeCaps, typ)
	} else {
		r.typeCaps[typ] = cap
	}
	r.mu.Unlock()
}

// Cleanup 显式释放一条记录
// 未知 id 返回 (false, nil)；属主已被回收的记录视作已进入终结路径，
// 返回 (true, nil) 且不再调用释放函数；释放失败仍移除记录
func (r *Registry) Cleanup(ctx context.Context, id string) (bool, error) {
	if r.IsClosed() {
		return false, coreerrors.New(coreerrors.CodeResourceClosed, "resource registry is closed")
	}
	return r.cleanup(ctx, id, types.TriggerExplicit)
}

// cleanup 移除并释放一条记录，trigger 标注触发来源
func (r *Registry) cleanup(ctx context.Context, id string, trigger types.CleanupTrigger) (bool, error) {
	r.mu.Lock()
	rec, ok := r.removeLocked(id)
	tracked := len(r.records)
	r.mu.Unlock()
	if !ok {
		return false, nil
	}

	autoManaged := !rec.Persistent && r.observer != nil
	if autoManaged {
		r.observer.Unobserve(id)
		if !rec.owner.Alive() {
			// 属主已死亡，释放由终结路径负责
			metrics.SetTracked(r.metrics, float64(tracked))
			return true, nil
		}
	}

	start := time.Now()
	err := safeRelease(ctx, rec.release)
	elapsed := float64(time.Since(start).Milliseconds())
	metrics.RecordReleased(r.metrics, string(rec.Type), string(trigger), elapsed, err == nil)
	metrics.SetTracked(r.metrics, float64(tracked))
	if err != nil {
		return true, coreerrors.Wrapf(err, coreerrors.CodeCleanupError, "release %s failed", id)
	}
	return true, nil
}

// CleanupAll 释放全部记录，按优先级降序、全量尝试
func (r *Registry) CleanupAll(ctx context.Context) Result {
	if r.IsClosed() {
		return Result{}
	}
	return r.cleanupBulk(ctx, r.snapshot(""), types.TriggerBulk)
}

// CleanupByType 释放指定类型的全部记录
func (r *Registry) CleanupByType(ctx context.Context, typ types.ResourceType) Result {
	if r.IsClosed() {
		return Result{}
	}
	return r.cleanupBulk(ctx, r.snapshot(typ), types.TriggerBulk)
}

// bulkEntry 批量清理的快照条目
type bulkEntry struct {
	id       string
	typ      types.ResourceType
	priority types.Priority
}

// snapshot 抓取当前记录快照，typ 为空表示全部
func (r *Registry) snapshot(typ types.ResourceType) []bulkEntry {
	r.mu.RLock()
	entries := make([]bulkEntry, 0, len(r.records))
	for _, rec := range r.records {
		if typ != "" && rec.Type != typ {
			continue
		}
		entries = append(entries, bulkEntry{id: rec.ID, typ: rec.Type, priority: rec.Priority})
	}
	r.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority > entries[j].priority
	})
	return entries
}

// cleanupBulk 并发释放快照内的全部条目
// 单条失败不阻断其余条目；快照后已消失的条目按幂等成功计
func (r *Registry) cleanupBulk(ctx context.Context, entries []bulkEntry, trigger types.CleanupTrigger) Result {
	result := Result{PerType: make(map[types.ResourceType]TypeCount)}
	if len(entries) == 0 {
		return result
	}

	var resultMu sync.Mutex
	var g errgroup.Group
	g.SetLimit(constants.DefaultBulkParallelism)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			_, err := r.cleanup(ctx, e.id, trigger)
			resultMu.Lock()
			tc := result.PerType[e.typ]
			if err != nil {
				result.Failed++
				tc.Failed++
				result.Errors = append(result.Errors, err)
			} else {
				result.Success++
				tc.Succeeded++
			}
			result.PerType[e.typ] = tc
			resultMu.Unlock()
			return nil
		})
	}
	g.Wait()

	r.mu.RLock()
	tracked := len(r.records)
	r.mu.RUnlock()
	metrics.SetTracked(r.metrics, float64(tracked))

	if result.Failed > 0 {
		r.logger.Warnf("bulk cleanup finished with failures (success=%d failed=%d)", result.Success, result.Failed)
	} else {
		r.logger.Debugf("bulk cleanup finished (success=%d)", result.Success)
	}
	return result
}

// onOwnerUnreachable 属主被回收后的终结回调
// 先移除记录杜绝重复通知；高优先级与必须立即执行的类型就地释放，
// 其余交给调度器延迟批量释放
func (r *Registry) onOwnerUnreachable(id string) {
	r.mu.Lock()
	rec, ok := r.removeLocked(id)
	tracked := len(r.records)
	r.mu.Unlock()
	if !ok {
		return
	}

	inline := rec.Priority >= types.PriorityHigh || rec.Type.MustRunNow() || r.scheduler == nil
	metrics.RecordFinalized(r.metrics, inline)
	metrics.SetTracked(r.metrics, float64(tracked))

	release := func(ctx context.Context) error {
		start := time.Now()
		err := safeRelease(ctx, rec.release)
		elapsed := float64(time.Since(start).Milliseconds())
		metrics.RecordReleased(r.metrics, string(rec.Type), string(types.TriggerOwnerGone), elapsed, err == nil)
		return err
	}

	if inline {
		if err := release(r.Ctx()); err != nil {
			r.logger.WithError(err).WithField(constants.LogFieldResourceID, id).Errorf("finalization release failed")
		}
		return
	}
	r.scheduler.Enqueue(id, release, rec.Priority)
}

// TrackedCount 当前登记的记录数
func (r *Registry) TrackedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// TrackedCountByType 指定类型的记录数
func (r *Registry) TrackedCountByType(typ types.ResourceType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[typ]
}

// Describe 全部记录快照，创建时间升序
func (r *Registry) Describe() []View {
	r.mu.RLock()
	views := make([]View, 0, len(r.records))
	for _, rec := range r.records {
		views = append(views, rec.view())
	}
	r.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	return views
}

// Info 单条记录快照
func (r *Registry) Info(id string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return View{}, false
	}
	return rec.view(), true
}

// Dispose 实现 Disposable
func (r *Registry) Dispose() error {
	return r.CloseWithError()
}

// removeLocked 从两张表移除记录，调用方持写锁
func (r *Registry) removeLocked(id string) (*Record, bool) {
	rec, ok := r.records[id]
	if !ok {
		return nil, false
	}
	delete(r.records, id)
	r.byType[rec.Type]--
	if r.byType[rec.Type] <= 0 {
		delete(r.byType, rec.Type)
	}
	return rec, true
}

// drainOnClose 关闭时释放仍在登记中的记录
func (r *Registry) drainOnClose() error {
	r.mu.RLock()
	remaining := len(r.records)
	r.mu.RUnlock()
	if remaining == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	result := r.cleanupBulk(ctx, r.snapshot(""), types.TriggerShutdown)
	r.logger.Infof("registry drained on close (success=%d failed=%d)", result.Success, result.Failed)
	if result.Failed > 0 {
		return coreerrors.Newf(coreerrors.CodeCleanupError, "%d resources failed to release on close", result.Failed)
	}
	return nil
}

// safeRelease 执行释放函数，panic 转为错误
func safeRelease(ctx context.Context, release ReleaseFunc) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = coreerrors.Newf(coreerrors.CodeInternal, "release panic: %v", rec)
		}
	}()
	return release(ctx)
}

// 编译时接口断言
var _ dispose.Disposable = (*Registry)(nil)
