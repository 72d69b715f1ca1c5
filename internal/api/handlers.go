package api

import (
	"net/http"
	"sort"
	"time"

	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/lifecycle"
	"lifekit-core/internal/core/types"

	"github.com/gorilla/mux"
)

// healthView 健康检查响应
type healthView struct {
	Status  string `json:"status"`
	Session string `json:"session"`
	Mode    string `json:"mode"`
	Profile string `json:"profile"`
	Time    string `json:"time"`
}

// statsView 遥测快照响应
type statsView struct {
	Mode            string             `json:"mode"`
	Profile         string             `json:"profile"`
	Resources       int                `json:"resources"`
	Subscriptions   int                `json:"subscriptions"`
	PendingReleases int                `json:"pending_releases"`
	Components      []string           `json:"components"`
	Events          []string           `json:"events"`
	Metrics         map[string]float64 `json:"metrics"`
}

// handleHealthz 健康检查
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, healthView{
		Status:  "ok",
		Session: s.rt.Session().ID(),
		Mode:    string(s.rt.Session().Mode()),
		Profile: string(s.rt.Session().Profile()),
		Time:    time.Now().Format(time.RFC3339),
	})
}

// handleListResources 列出受管资源
//
// GET /api/v1/resources?type=<resource_type>
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	views := s.rt.Resources().Describe()
	if typ := r.URL.Query().Get("type"); typ != "" {
		filtered := make([]lifecycle.View, 0, len(views))
		for _, v := range views {
			if v.Type == typ {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"count":     len(views),
		"resources": views,
	})
}

// handleGetResource 查看单条资源
//
// GET /api/v1/resources/{id}
func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	view, ok := s.rt.Resources().Info(id)
	if !ok {
		s.respondError(w, coreerrors.Newf(coreerrors.CodeNotFound, "resource %s not found", id))
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

// handleListSubscriptions 列出订阅
//
// GET /api/v1/subscriptions?category=<category>
func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	views := s.rt.Subscriptions().Describe()
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := views[:0]
		for _, v := range views {
			if v.Category == category {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"count":         len(views),
		"subscriptions": views,
	})
}

// handleListGroups 列出订阅组
//
// GET /api/v1/groups
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.rt.Subscriptions().Groups()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"count":  len(groups),
		"groups": groups,
	})
}

// handleStats 遥测快照
//
// GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	eventNames := s.rt.Bus().EventNames()
	sort.Strings(eventNames)
	s.respondJSON(w, http.StatusOK, statsView{
		Mode:            string(s.rt.Session().Mode()),
		Profile:         string(s.rt.Session().Profile()),
		Resources:       s.rt.Resources().TrackedCount(),
		Subscriptions:   s.rt.Subscriptions().ActiveCount(),
		PendingReleases: s.rt.Scheduler().PendingCount(),
		Components:      s.rt.Components(),
		Events:          eventNames,
		Metrics:         s.rt.Stats(),
	})
}

// handleListSettings 列出全部设置键值
//
// GET /api/v1/settings
func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := s.rt.Settings()
	keys, err := store.Keys(ctx)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		value, err := store.GetString(ctx, key)
		if err != nil {
			// 并发删除的键直接跳过
			continue
		}
		out[key] = value
	}
	s.respondJSON(w, http.StatusOK, out)
}

// putSettingRequest 设置写入请求体
type putSettingRequest struct {
	Value string `json:"value"`
}

// handlePutSetting 写入设置
// 写入经由变更通知级联到运行时，改 runtime.profile 会当场切档
//
// PUT /api/v1/settings/{key}
func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var req putSettingRequest
	if err := parseJSONBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.rt.Settings().SetString(r.Context(), key, req.Value); err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Infof("setting updated via api: %s=%s", key, req.Value)
	s.respondJSON(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": req.Value,
	})
}

// handleDeleteSetting 删除设置
//
// DELETE /api/v1/settings/{key}
func (s *Server) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.rt.Settings().Delete(r.Context(), key); err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Infof("setting deleted via api: %s", key)
	s.respondJSON(w, http.StatusOK, map[string]string{
		"key": key,
	})
}

// handleCleanup 批量清理资源
//
// POST /api/v1/cleanup?type=<resource_type>
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var result lifecycle.Result
	if typ := r.URL.Query().Get("type"); typ != "" {
		result = s.rt.Resources().CleanupByType(ctx, types.ResourceType(typ))
	} else {
		result = s.rt.Resources().CleanupAll(ctx)
	}
	if result.Failed > 0 {
		s.logger.Warnf("cleanup via api: %d released, %d failed", result.Success, result.Failed)
	} else {
		s.logger.Infof("cleanup via api: %d released", result.Success)
	}
	s.respondJSON(w, http.StatusOK, result)
}
