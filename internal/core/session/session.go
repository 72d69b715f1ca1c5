package session

import (
	"strings"
	"sync"

	"lifekit-core/internal/core/events"
	"lifekit-core/internal/core/idgen"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/types"
)

// EventProfileChanged 宿主会话档位变化事件，载荷为 Change
const EventProfileChanged = "profile-changed"

// Mode 宿主交互模式
type Mode string

const (
	// ModeInteractive 前台交互中，倾向低延迟
	ModeInteractive Mode = "interactive"
	// ModeBackground 后台运行，倾向低开销
	ModeBackground Mode = "background"
)

// ParseMode 解析模式名称，未知值回落到 background
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeInteractive)) {
		return ModeInteractive
	}
	return ModeBackground
}

// DefaultProfile 模式对应的默认运行档位
func DefaultProfile(mode Mode) types.Profile {
	if mode == ModeInteractive {
		return types.ProfileFast
	}
	return types.ProfileConservative
}

// Change profile-changed 事件载荷
type Change struct {
	Mode    Mode
	Profile types.Profile
}

// idGen 会话标识生成器，UUID v7 让标识按创建时间有序
var idGen = idgen.NewUUIDGenerator("sess_")

// Session 宿主会话：当前交互模式与运行档位
// 组件在构造时读取一次，此后订阅 profile-changed 跟随变化
type Session struct {
	mu      sync.RWMutex
	id      string
	mode    Mode
	profile types.Profile
	bus     *events.Bus
	logger  log.Logger
}

// New 创建宿主会话，bus 可为 nil（此时 Update 只更新状态不发事件）
func New(bus *events.Bus, mode Mode, profile types.Profile) *Session {
	id, _ := idGen.Generate()
	return &Session{
		id:      id,
		mode:    ParseMode(string(mode)),
		profile: types.ParseProfile(string(profile)),
		bus:     bus,
		logger:  log.WithComponent("session"),
	}
}

// Fixed 固定档位的会话，测试用
func Fixed(profile types.Profile) *Session {
	return New(nil, ModeBackground, profile)
}

// ID 会话标识，同一宿主的多次运行互不相同
func (s *Session) ID() string {
	return s.id
}

// Mode 当前交互模式
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Profile 当前运行档位
func (s *Session) Profile() types.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Bus 会话挂载的事件总线，可能为 nil
func (s *Session) Bus() *events.Bus {
	return s.bus
}

// Update 更新模式与档位，发生实际变化时发出 profile-changed
func (s *Session) Update(mode Mode, profile types.Profile) {
	mode = ParseMode(string(mode))
	profile = types.ParseProfile(string(profile))

	s.mu.Lock()
	changed := s.mode != mode || s.profile != profile
	s.mode = mode
	s.profile = profile
	s.mu.Unlock()

	if !changed {
		return
	}
	s.logger.Infof("session changed: mode=%s profile=%s", mode, profile)
	if s.bus != nil {
		s.bus.Emit(EventProfileChanged, Change{Mode: mode, Profile: profile})
	}
}
