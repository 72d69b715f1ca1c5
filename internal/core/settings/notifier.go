package settings

import (
	"sync"

	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/events"
	"lifekit-core/internal/core/log"
)

// EventKeyChangedPrefix 设置变更事件名前缀，完整事件名为 changed::<key>
const EventKeyChangedPrefix = "changed::"

// ChangedEvent 拼出指定键的变更事件名
func ChangedEvent(key string) string {
	return EventKeyChangedPrefix + key
}

// Notifier 把设置存储的键监听桥接到事件总线
// 每个被桥接的键在总线上以 changed::<key> 事件广播新值（参数为原始字符串）
type Notifier struct {
	store Store
	bus   *events.Bus

	mu      sync.Mutex
	watches map[string]string
	logger  log.Logger
}

// NewNotifier 创建桥接器
func NewNotifier(store Store, bus *events.Bus) (*Notifier, error) {
	if store == nil {
		return nil, coreerrors.NewValidationError("store", "store cannot be nil")
	}
	if bus == nil {
		return nil, coreerrors.NewValidationError("bus", "bus cannot be nil")
	}
	return &Notifier{
		store:   store,
		bus:     bus,
		watches: make(map[string]string),
		logger:  log.WithComponent("settings.notifier"),
	}, nil
}

// Bridge 开始桥接一个键，重复桥接同一键为空操作
func (n *Notifier) Bridge(key string) error {
	if key == "" {
		return coreerrors.NewValidationError("key", "setting key cannot be empty")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.watches[key]; exists {
		return nil
	}
	watchID, err := n.store.Watch(key, func(value string) {
		n.bus.Emit(ChangedEvent(key), value)
	})
	if err != nil {
		return err
	}
	n.watches[key] = watchID
	return nil
}

// BridgeAll 批量桥接，遇到首个错误即返回
func (n *Notifier) BridgeAll(keys ...string) error {
	for _, key := range keys {
		if err := n.Bridge(key); err != nil {
			return err
		}
	}
	return nil
}

// Unbridge 停止桥接一个键
func (n *Notifier) Unbridge(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if watchID, exists := n.watches[key]; exists {
		n.store.Unwatch(watchID)
		delete(n.watches, key)
	}
}

// BridgedKeys 当前桥接中的键
func (n *Notifier) BridgedKeys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	keys := make([]string, 0, len(n.watches))
	for key := range n.watches {
		keys = append(keys, key)
	}
	return keys
}

// Close 停止全部桥接
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for key, watchID := range n.watches {
		n.store.Unwatch(watchID)
		delete(n.watches, key)
	}
	return nil
}
