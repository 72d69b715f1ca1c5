package api

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"lifekit-core/internal/constants"
	"lifekit-core/internal/core/safe"

	"github.com/gorilla/websocket"
)

// eventFrame 推送给订阅端的单条事件
// 参数统一渲染为字符串，任意负载都能序列化
type eventFrame struct {
	Event string    `json:"event"`
	Args  []string  `json:"args,omitempty"`
	Time  time.Time `json:"time"`
}

// handleEvents 把总线事件以 WebSocket 流式推送
// 慢消费者不拖累总线：队列满即丢弃，断开时记录丢弃数
//
// GET /api/v1/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warnf("websocket upgrade failed")
		return
	}
	s.logger.Infof("event stream client connected: %s", r.RemoteAddr)

	queue := make(chan eventFrame, constants.WSEventQueueSize)
	var dropped atomic.Int64

	listenerID, err := s.rt.Bus().OnAny(func(event string, args ...any) error {
		frame := eventFrame{Event: event, Args: renderArgs(args), Time: time.Now()}
		select {
		case queue <- frame:
		default:
			dropped.Add(1)
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Warnf("event stream subscribe failed")
		conn.Close()
		return
	}

	clientGone := make(chan struct{})

	// 读泵只为感知客户端断开，收到的内容一律丢弃
	safe.Go("api.ws.read", func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	safe.GoWithContext(s.Ctx(), "api.ws.write", func(ctx context.Context) {
		defer func() {
			s.rt.Bus().OffAny(listenerID)
			conn.Close()
			s.logger.Infof("event stream client gone: %s dropped=%d", r.RemoteAddr, dropped.Load())
		}()
		for {
			select {
			case frame := <-queue:
				conn.SetWriteDeadline(time.Now().Add(constants.DefaultWaitTimeout))
				if err := conn.WriteJSON(frame); err != nil {
					return
				}
			case <-clientGone:
				return
			case <-ctx.Done():
				conn.SetWriteDeadline(time.Now().Add(constants.DefaultWaitTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
		}
	})
}

// renderArgs 事件参数转字符串
func renderArgs(args []any) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = fmt.Sprint(a)
	}
	return out
}
