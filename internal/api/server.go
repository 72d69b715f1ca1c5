// Package api 提供运维调试用的 HTTP 接口
// 暴露资源注册表、订阅注册表、设置存储与遥测快照的只读视图，
// 外加少量写操作（设置修改、批量清理）和一个事件流 WebSocket。
// 面向本机运维场景，不做认证。
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"lifekit-core/internal/app"
	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/dispose"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/safe"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Config API 服务配置
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// Server 运维调试 API 服务器
type Server struct {
	*dispose.ManagerBase

	config   *Config
	rt       *app.Runtime
	router   *mux.Router
	server   *http.Server
	upgrader websocket.Upgrader
	logger   log.Logger
}

// NewServer 创建 API 服务器
// rt 由调用方持有并负责关闭，服务器只读其组件
func NewServer(parentCtx context.Context, config *Config, rt *app.Runtime) *Server {
	if config == nil {
		config = &Config{}
	}
	s := &Server{
		ManagerBase: dispose.NewManager("APIServer", parentCtx),
		config:      config,
		rt:          rt,
		router:      mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  constants.WSBufferSize,
			WriteBufferSize: constants.WSBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.WithComponent("api"),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  constants.APIReadTimeout,
		WriteTimeout: constants.APIWriteTimeout,
		IdleTimeout:  constants.APIIdleTimeout,
	}

	s.AddCleanHandler(func() error {
		s.logger.Infof("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultWaitTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})

	return s
}

// Start 启动监听
// 监听循环跑在后台 goroutine，绑定失败只记日志
func (s *Server) Start() error {
	if !s.config.Enabled {
		s.logger.Infof("api server disabled")
		return nil
	}
	s.logger.Infof("api server listening on %s", s.config.ListenAddr)
	safe.GoWithContext(s.Ctx(), "api.serve", func(ctx context.Context) {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Errorf("api server terminated")
		}
	})
	return nil
}

// registerRoutes 注册所有路由
func (s *Server) registerRoutes() {
	s.router.Use(s.recoveryMiddleware)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NewResponseHelper().Error(w, http.StatusNotFound, constants.ResponseMsgNotFound)
	})

	// 健康检查不走请求日志，负载均衡探活用
	s.router.HandleFunc(constants.APIPathHealthz, s.handleHealthz).Methods("GET")

	api := s.router.PathPrefix(constants.APIPathV1).Subrouter()
	api.Use(s.loggingMiddleware)

	// 资源视图
	api.HandleFunc(constants.APIPathResources, s.handleListResources).Methods("GET")
	api.HandleFunc(constants.APIPathResources+"/{id}", s.handleGetResource).Methods("GET")

	// 订阅视图
	api.HandleFunc(constants.APIPathSubscriptions, s.handleListSubscriptions).Methods("GET")
	api.HandleFunc(constants.APIPathGroups, s.handleListGroups).Methods("GET")

	// 遥测快照
	api.HandleFunc(constants.APIPathStats, s.handleStats).Methods("GET")

	// 设置读写，写入会经由变更通知级联到运行时
	api.HandleFunc(constants.APIPathSettings, s.handleListSettings).Methods("GET")
	api.HandleFunc(constants.APIPathSettings+"/{key}", s.handlePutSetting).Methods("PUT")
	api.HandleFunc(constants.APIPathSettings+"/{key}", s.handleDeleteSetting).Methods("DELETE")

	// 批量清理
	api.HandleFunc(constants.APIPathCleanup, s.handleCleanup).Methods("POST")

	// 事件流
	api.HandleFunc(constants.APIPathEvents, s.handleEvents).Methods("GET")
}

// loggingMiddleware 请求日志中间件，调用方带 X-Request-ID 时一并记录
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger := s.logger
		if id := r.Header.Get(constants.HTTPHeaderXRequestID); id != "" {
			logger = logger.WithField("request_id", id)
		}
		logger.Debugf("%s %s - %s", r.Method, r.RequestURI, time.Since(start))
	})
}

// recoveryMiddleware 捕获处理器 panic，转成 500 响应
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Errorf("handler panic on %s %s: %v", r.Method, r.URL.Path, rec)
				NewResponseHelper().Error(w, http.StatusInternalServerError,
					constants.ResponseMsgInternalError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// respondJSON 发送成功响应
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	NewResponseHelper().Success(w, statusCode, data)
}

// respondError 按错误码映射 HTTP 状态并发送错误响应
// 系统级错误（内部/存储/超时/不可用）额外记录日志，客户端错误只回传
func (s *Server) respondError(w http.ResponseWriter, err error) {
	if coreerrors.IsSystemError(err) {
		s.logger.Errorf("Request failed: %v", err)
	}
	NewResponseHelper().Error(w, statusForError(err), err.Error())
}

// statusForError 错误码到 HTTP 状态码的映射
func statusForError(err error) int {
	switch coreerrors.GetCode(err) {
	case coreerrors.CodeNotFound:
		return http.StatusNotFound
	case coreerrors.CodeValidationError, coreerrors.CodeInvalidParam, coreerrors.CodeMissingParam:
		return http.StatusBadRequest
	case coreerrors.CodeAlreadyExists:
		return http.StatusConflict
	case coreerrors.CodeLimitExceeded, coreerrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case coreerrors.CodeResourceClosed, coreerrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseJSONBody 解析 JSON 请求体
func parseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "invalid JSON body")
	}
	return nil
}

var _ dispose.Disposable = (*Server)(nil)

// Dispose 实现 Disposable
func (s *Server) Dispose() error {
	return s.CloseWithError()
}
