package subscription

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/events"
	"lifekit-core/internal/core/idgen"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/metrics"
	"lifekit-core/internal/core/types"
	"lifekit-core/internal/core/weakref"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// Registry 订阅注册表
// 代管事件源上的监听器：登记时挂属主观察，源被回收后记录自动摘除；
// 按类别限制订阅数，支持组整体断开与模式观察
type Registry struct {
	*dispose.ResourceBase

	mu       sync.RWMutex
	records  map[string]*Record
	byCat    map[string]int
	caps     map[string]int
	groups   map[string]*Group
	patterns map[string]*pattern

	defaultCap int
	regexCache *lru.Cache[string, *regexp.Regexp]

	subGen *idgen.SequenceGenerator
	patGen *idgen.SequenceGenerator
	grpGen *idgen.SequenceGenerator

	observer weakref.Observer
	metrics  metrics.Metrics
	logger   log.Logger
}

// Config 订阅注册表配置
type Config struct {
	// Observer 属主观察器，nil 表示源回收后记录只能显式断开
	Observer weakref.Observer
	// CategoryCaps 按类别的订阅上限，正数为上限，负数不限
	CategoryCaps map[string]int
	// DefaultCap 未单独配置类别的默认上限，0 取内置默认
	DefaultCap int
}

// NewRegistry 创建订阅注册表
func NewRegistry(parentCtx context.Context, cfg *Config, m metrics.Metrics) (*Registry, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	defaultCap := cfg.DefaultCap
	if defaultCap == 0 {
		defaultCap = constants.DefaultCategoryCap
	}
	cache, err := lru.New[string, *regexp.Regexp](constants.DefaultPatternCacheSize)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		ResourceBase: dispose.NewResourceBase("SubscriptionRegistry"),
		records:      make(map[string]*Record),
		byCat:        make(map[string]int),
		caps:         make(map[string]int),
		groups:       make(map[string]*Group),
		patterns:     make(map[string]*pattern),
		defaultCap:   defaultCap,
		regexCache:   cache,
		subGen:       idgen.NewSequenceGenerator(constants.IDPrefixSubscription),
		patGen:       idgen.NewSequenceGenerator(constants.IDPrefixPattern),
		grpGen:       idgen.NewSequenceGenerator(constants.IDPrefixGroup),
		observer:     cfg.Observer,
		metrics:      m,
		logger:       log.WithComponent("subscription.registry"),
	}
	for cat, limit := range cfg.CategoryCaps {
		r.caps[cat] = limit
	}
	r.ResourceBase.Initialize(parentCtx)
	r.AddCleanHandler(r.drainOnClose)
	return r, nil
}

// Connect 在 source 上登记一个事件监听
// source 必须实现 events.Source，否则报连接错误；源被回收后订阅自动摘除
func Connect[T any](r *Registry, source *T, event string, fn events.Listener, opts ...ConnectOption) (string, error) {
	if source == nil {
		return "", coreerrors.NewValidationError("source", "source is required")
	}
	src, ok := any(source).(events.Source)
	if !ok {
		return "", coreerrors.Newf(coreerrors.CodeConnectionError, "source %T does not support subscriptions", source)
	}
	return r.ConnectSource(weakref.Make(source), src, event, fn, opts...)
}

// ConnectSource 以显式句柄登记监听
// h 解引用应当得到 src 本身：断开时经 h 找回事件源，源已被回收则视作已断开
func (r *Registry) ConnectSource(h weakref.Handle, src events.Source, event string, fn events.Listener, opts ...ConnectOption) (string, error) {
	if r.IsClosed() {
		return "", coreerrors.New(coreerrors.CodeResourceClosed, "subscription registry is closed")
	}
	if h == nil {
		return "", coreerrors.NewValidationError("handle", "source handle is required")
	}
	if src == nil {
		return "", coreerrors.NewValidationError("source", "source is required")
	}
	if event == "" {
		return "", coreerrors.NewValidationError("event", "event name is required")
	}
	if fn == nil {
		return "", coreerrors.NewValidationError("fn", "listener is required")
	}

	o := connectOptions{priority: types.PriorityNormal}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.priority.Valid() {
		return "", coreerrors.NewValidationError("priority", "unknown priority level")
	}
	category := resolveCategory(o, src)
	ownerName := resolveOwnerName(o, src)

	// 先占类别名额，失败时回滚，避免持锁调用事件源
	r.mu.Lock()
	if limit := r.capForLocked(category); limit > 0 && r.byCat[category] >= limit {
		r.mu.Unlock()
		return "", coreerrors.NewLimitError(category, int64(limit))
	}
	r.byCat[category]++
	r.mu.Unlock()

	id, err := r.subGen.Generate()
	if err != nil {
		r.releaseSlot(category)
		return "", coreerrors.Wrap(err, coreerrors.CodeInternal, "generate subscription id failed")
	}

	rec := &Record{
		ID:            id,
		Event:         event,
		OwnerName:     ownerName,
		Category:      category,
		GroupID:       o.group,
		Priority:      o.priority,
		AutoReconnect: o.autoReconnect,
		CreatedAt:     time.Now(),
		source:        h,
		exempt:        o.exempt,
	}
	wrapped := func(args ...any) error {
		rec.invocations.Add(1)
		if err := fn(args...); err != nil {
			rec.markError()
			return err
		}
		return nil
	}

	native, err := src.On(event, wrapped)
	if err != nil {
		r.releaseSlot(category)
		return "", coreerrors.NewConnectionError(ownerName,
			fmt.Sprintf("subscribe %s failed", event), err)
	}
	rec.native = native

	r.mu.Lock()
	r.records[id] = rec
	if o.group != "" {
		g := r.ensureGroupLocked(o.group)
		g.members = append(g.members, id)
	}
	matched := r.matchingPatternsLocked(rec)
	r.mu.Unlock()

	// 源登记时就已不可达的话，Observe 会同步触发摘除回调
	if !o.exempt && r.observer != nil {
		if err := r.observer.Observe(id, h, func() { r.onSourceUnreachable(id) }); err != nil {
			r.rollbackConnect(id, src)
			return "", coreerrors.Wrap(err, coreerrors.CodeInternal, "register ownership observer failed")
		}
	}

	r.notifyPatterns(matched, rec)
	metrics.RecordConnected(r.metrics, category)
	metrics.SetActiveSubscriptions(r.metrics, float64(r.ActiveCount()))
	r.logger.WithField(constants.LogFieldSubID, id).Debugf("connected %s on %s (category=%s)", event, ownerName, category)
	return id, nil
}

// Disconnect 断开订阅
// 未知 id 返回 (false, nil)；源已被回收视作已断开，同样成功
func (r *Registry) Disconnect(ctx context.Context, id string) (bool, error) {
	if r.IsClosed() {
		return false, coreerrors.New(coreerrors.CodeResourceClosed, "subscription registry is closed")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return false, coreerrors.Wrap(err, coreerrors.CodeCancelled, "disconnect aborted")
		}
	}
	return r.disconnect(id), nil
}

// disconnect 摘除一条记录并反注册源上的监听器，返回记录是否存在
func (r *Registry) disconnect(id string) bool {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.records, id)
	r.byCat[rec.Category]--
	if r.byCat[rec.Category] <= 0 {
		delete(r.byCat, rec.Category)
	}
	r.clearGroupMemberLocked(rec.GroupID, id)
	active := len(r.records)
	r.mu.Unlock()

	rec.markDisconnected()
	if !rec.exempt && r.observer != nil {
		r.observer.Unobserve(id)
	}

	// 源还活着才有监听器可摘；已回收的源连同监听器一起消亡
	if v, alive := rec.source.Get(); alive {
		if src, ok := v.(events.Source); ok {
			src.Off(rec.Event, rec.native)
		}
	}

	metrics.RecordDisconnected(r.metrics, rec.Category)
	metrics.SetActiveSubscriptions(r.metrics, float64(active))
	return true
}

// DisconnectByObject 断开指定事件源上的全部订阅
func (r *Registry) DisconnectByObject(ctx context.Context, source any) Result {
	if r.IsClosed() || source == nil {
		return Result{}
	}

	r.mu.RLock()
	entries := make([]bulkEntry, 0)
	for _, rec := range r.records {
		if v, alive := rec.source.Get(); alive && v == source {
			entries = append(entries, bulkEntry{id: rec.ID, priority: rec.Priority})
		}
	}
	r.mu.RUnlock()

	return r.disconnectBulk(ctx, entries)
}

// NewGroup 创建订阅组，clearOnDisconnect 控制成员在断开成功后是否立即出组
func (r *Registry) NewGroup(clearOnDisconnect bool) (string, error) {
	if r.IsClosed() {
		return "", coreerrors.New(coreerrors.CodeResourceClosed, "subscription registry is closed")
	}
	id, err := r.grpGen.Generate()
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeInternal, "generate group id failed")
	}
	r.mu.Lock()
	r.groups[id] = &Group{ID: id, ClearOnDisconnect: clearOnDisconnect}
	r.mu.Unlock()
	return id, nil
}

// DisconnectGroup 断开组内全部订阅
// clearOnDisconnect 的组按成员断开成功逐个出组，部分失败时失败成员留在组里可重试；
// 成员的源已被回收同样计成功
func (r *Registry) DisconnectGroup(ctx context.Context, groupID string) Result {
	if r.IsClosed() {
		return Result{}
	}

	r.mu.RLock()
	g, ok := r.groups[groupID]
	if !ok {
		r.mu.RUnlock()
		return Result{}
	}
	entries := make([]bulkEntry, 0, len(g.members))
	for _, id := range g.members {
		e := bulkEntry{id: id, priority: types.PriorityNormal}
		if rec, exists := r.records[id]; exists {
			e.priority = rec.Priority
		}
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	return r.disconnectBulk(ctx, entries)
}

// GroupMembers 组内成员快照，保持挂入顺序
func (r *Registry) GroupMembers(groupID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupID]
	if !ok {
		return nil
	}
	members := make([]string, len(g.members))
	copy(members, g.members)
	return members
}

// Groups 全部订阅组快照
func (r *Registry) Groups() []GroupView {
	r.mu.RLock()
	views := make([]GroupView, 0, len(r.groups))
	for _, g := range r.groups {
		members := make([]string, len(g.members))
		copy(members, g.members)
		views = append(views, GroupView{ID: g.ID, ClearOnDisconnect: g.ClearOnDisconnect, Members: members})
	}
	r.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// bulkEntry 批量断开的快照条目
type bulkEntry struct {
	id       string
	priority types.Priority
}

// disconnectBulk 并发断开快照内的全部条目，高优先级先行，单条互不影响
func (r *Registry) disconnectBulk(ctx context.Context, entries []bulkEntry) Result {
	result := Result{}
	if len(entries) == 0 {
		return result
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority > entries[j].priority
	})

	var resultMu sync.Mutex
	var g errgroup.Group
	g.SetLimit(constants.DefaultBulkParallelism)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			var err error
			if ctx != nil {
				err = ctx.Err()
			}
			if err == nil {
				r.disconnect(e.id)
			}
			resultMu.Lock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, coreerrors.Wrapf(err, coreerrors.CodeCancelled, "disconnect %s aborted", e.id))
			} else {
				result.Success++
			}
			resultMu.Unlock()
			return nil
		})
	}
	g.Wait()

	if result.Failed > 0 {
		r.logger.Warnf("bulk disconnect finished with failures (success=%d failed=%d)", result.Success, result.Failed)
	}
	return result
}

// FindSignals 按条件查找订阅 id
// 条件为零值的维度不过滤；Predicate 只对源仍存活的记录求值
func (r *Registry) FindSignals(c Criteria) []string {
	var eventRe *regexp.Regexp
	if c.EventPattern != "" {
		re, err := r.compile(c.EventPattern)
		if err != nil {
			r.logger.WithError(err).Warnf("find signals with invalid event pattern")
			return nil
		}
		eventRe = re
	}

	r.mu.RLock()
	candidates := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		candidates = append(candidates, rec)
	}
	r.mu.RUnlock()

	ids := make([]string, 0)
	for _, rec := range candidates {
		if eventRe != nil && !eventRe.MatchString(rec.Event) {
			continue
		}
		if c.Category != "" && rec.Category != c.Category {
			continue
		}
		if c.Status != nil && rec.Status() != *c.Status {
			continue
		}
		if c.Predicate != nil {
			v, alive := rec.source.Get()
			if !alive || !c.Predicate(v) {
				continue
			}
		}
		ids = append(ids, rec.ID)
	}
	sort.Strings(ids)
	return ids
}

// ActiveCount 当前登记的订阅数
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// CountByCategory 指定类别的订阅数
func (r *Registry) CountByCategory(category string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byCat[category]
}

// SetCategoryCap 设置类别订阅上限：正数为上限，0 回到默认上限，负数不限
func (r *Registry) SetCategoryCap(category string, max int) {
	r.mu.Lock()
	if max == 0 {
		delete(r.caps, category)
	} else {
		r.caps[category] = max
	}
	r.mu.Unlock()
}

// SetDefaultCap 覆盖默认类别上限，非正数表示不限
func (r *Registry) SetDefaultCap(max int) {
	r.mu.Lock()
	r.defaultCap = max
	r.mu.Unlock()
}

// Describe 全部订阅快照，创建时间升序
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

// Info 单条订阅快照
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

// onSourceUnreachable 源被回收后的摘除回调
// 监听器随源一起消亡，这里只做记录与额度的账面清理
func (r *Registry) onSourceUnreachable(id string) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.records, id)
	r.byCat[rec.Category]--
	if r.byCat[rec.Category] <= 0 {
		delete(r.byCat, rec.Category)
	}
	r.clearGroupMemberLocked(rec.GroupID, id)
	active := len(r.records)
	r.mu.Unlock()

	rec.markDisconnected()
	metrics.RecordDisconnected(r.metrics, rec.Category)
	metrics.SetActiveSubscriptions(r.metrics, float64(active))
	r.logger.WithField(constants.LogFieldSubID, id).Debugf("source gone, subscription removed")
}

// capForLocked 解析类别上限，0 表示不限，调用方持锁
func (r *Registry) capForLocked(category string) int {
	if v, ok := r.caps[category]; ok {
		if v < 0 {
			return 0
		}
		return v
	}
	if r.defaultCap <= 0 {
		return 0
	}
	return r.defaultCap
}

// releaseSlot 回滚预占的类别名额
func (r *Registry) releaseSlot(category string) {
	r.mu.Lock()
	r.byCat[category]--
	if r.byCat[category] <= 0 {
		delete(r.byCat, category)
	}
	r.mu.Unlock()
}

// rollbackConnect 观察注册失败时撤销半成品订阅
func (r *Registry) rollbackConnect(id string, src events.Source) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if ok {
		delete(r.records, id)
		r.byCat[rec.Category]--
		if r.byCat[rec.Category] <= 0 {
			delete(r.byCat, rec.Category)
		}
		r.clearGroupMemberLocked(rec.GroupID, id)
	}
	r.mu.Unlock()
	if ok {
		src.Off(rec.Event, rec.native)
	}
}

// ensureGroupLocked 取组，不存在则按默认配置创建，调用方持写锁
func (r *Registry) ensureGroupLocked(groupID string) *Group {
	g, ok := r.groups[groupID]
	if !ok {
		g = &Group{ID: groupID}
		r.groups[groupID] = g
	}
	return g
}

// clearGroupMemberLocked 断开成功后把成员移出 clearOnDisconnect 的组，调用方持写锁
func (r *Registry) clearGroupMemberLocked(groupID, id string) {
	if groupID == "" {
		return
	}
	g, ok := r.groups[groupID]
	if !ok || !g.ClearOnDisconnect {
		return
	}
	for i, member := range g.members {
		if member == id {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return
		}
	}
}

// matchingPatternsLocked 收集命中记录的模式，调用方持锁
func (r *Registry) matchingPatternsLocked(rec *Record) []*pattern {
	matched := make([]*pattern, 0)
	for _, p := range r.patterns {
		if p.matches(rec.OwnerName, rec.Event) {
			matched = append(matched, p)
		}
	}
	return matched
}

// drainOnClose 关闭时断开全部订阅并清空组与模式
func (r *Registry) drainOnClose() error {
	r.mu.RLock()
	entries := make([]bulkEntry, 0, len(r.records))
	for _, rec := range r.records {
		entries = append(entries, bulkEntry{id: rec.ID, priority: rec.Priority})
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
	defer cancel()
	result := r.disconnectBulk(ctx, entries)

	r.mu.Lock()
	r.groups = make(map[string]*Group)
	r.patterns = make(map[string]*pattern)
	r.mu.Unlock()

	metrics.SetActiveSubscriptions(r.metrics, 0)
	if result.Attempted() > 0 {
		r.logger.Infof("subscription registry drained on close (success=%d failed=%d)", result.Success, result.Failed)
	}
	return nil
}

// resolveCategory 类别取值顺序：选项 > 源自报 > 默认类别
func resolveCategory(o connectOptions, src events.Source) string {
	if o.category != "" {
		return o.category
	}
	if c, ok := src.(Categorized); ok && c.Category() != "" {
		return c.Category()
	}
	return constants.DefaultCategory
}

// resolveOwnerName 名称取值顺序：选项 > 源自报 > 类型名
func resolveOwnerName(o connectOptions, src events.Source) string {
	if o.ownerName != "" {
		return o.ownerName
	}
	if n, ok := src.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", src)
}

// 编译时接口断言
var _ dispose.Disposable = (*Registry)(nil)
