package subscription

import (
	"regexp"

	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/types"
)

// 模式通知的 kind 取值
const (
	// KindNew 模式注册之后新建立的订阅
	KindNew = "new"
	// KindExisting 模式注册时已存在的订阅
	KindExisting = "existing"
)

// Notification 模式命中通知
type Notification struct {
	ID        string `json:"id"`
	OwnerName string `json:"owner_name"`
	EventName string `json:"event_name"`
	Kind      string `json:"kind"`
}

// PatternCallback 模式回调，panic 被注册表吞掉并记日志
type PatternCallback func(n Notification)

// pattern 已注册的订阅观察模式
type pattern struct {
	id      string
	ownerRe *regexp.Regexp
	eventRe *regexp.Regexp
	fn      PatternCallback
}

// matches 判断记录是否命中
func (p *pattern) matches(ownerName, event string) bool {
	return p.ownerRe.MatchString(ownerName) && p.eventRe.MatchString(event)
}

// AddPattern 注册订阅观察模式
// 注册时立刻对现存 ACTIVE 记录发一轮 kind=existing 通知，之后的新连接
// 发 kind=new，晚到的观察者不会漏看已有状态；existing 通知无固定顺序
func (r *Registry) AddPattern(ownerExpr, eventExpr string, fn PatternCallback) (string, error) {
	if r.IsClosed() {
		return "", coreerrors.New(coreerrors.CodeResourceClosed, "subscription registry is closed")
	}
	if fn == nil {
		return "", coreerrors.NewValidationError("fn", "pattern callback is required")
	}
	ownerRe, err := r.compile(ownerExpr)
	if err != nil {
		return "", err
	}
	eventRe, err := r.compile(eventExpr)
	if err != nil {
		return "", err
	}

	id, err := r.patGen.Generate()
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeInternal, "generate pattern id failed")
	}
	p := &pattern{id: id, ownerRe: ownerRe, eventRe: eventRe, fn: fn}

	r.mu.Lock()
	r.patterns[id] = p
	hits := make([]Notification, 0)
	for _, rec := range r.records {
		if rec.Status() != types.StatusActive {
			continue
		}
		if p.matches(rec.OwnerName, rec.Event) {
			hits = append(hits, Notification{ID: rec.ID, OwnerName: rec.OwnerName, EventName: rec.Event, Kind: KindExisting})
		}
	}
	r.mu.Unlock()

	for _, n := range hits {
		r.firePattern(p, n)
	}
	return id, nil
}

// RemovePattern 移除模式，幂等
func (r *Registry) RemovePattern(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patterns[id]; !ok {
		return false
	}
	delete(r.patterns, id)
	return true
}

// PatternCount 当前注册的模式数
func (r *Registry) PatternCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

// notifyPatterns 对一条新订阅依次触发命中的模式
func (r *Registry) notifyPatterns(patterns []*pattern, rec *Record) {
	for _, p := range patterns {
		if p.matches(rec.OwnerName, rec.Event) {
			r.firePattern(p, Notification{ID: rec.ID, OwnerName: rec.OwnerName, EventName: rec.Event, Kind: KindNew})
		}
	}
}

// firePattern 执行单个模式回调，panic 不外泄
func (r *Registry) firePattern(p *pattern, n Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("pattern callback panic (%s): %v", p.id, rec)
		}
	}()
	p.fn(n)
}

// compile 经缓存编译匹配器，空表达式匹配一切
func (r *Registry) compile(expr string) (*regexp.Regexp, error) {
	if re, ok := r.regexCache.Get(expr); ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeValidationError, "invalid matcher %q", expr)
	}
	r.regexCache.Add(expr, re)
	return re, nil
}
