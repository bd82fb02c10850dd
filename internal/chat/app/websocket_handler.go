package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"topli_chat/internal/chat/domain"
	"topli_chat/internal/chat/repository"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Subscriber subscribe to a member channel
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(resp domain.WSResponse)) error
}

// ChatWebsocketHandler 推送未讀通知並處理進入聊天室
type ChatWebsocketHandler struct {
	readUC       *ReadStateUseCase
	subscriber   Subscriber
	pingInterval time.Duration
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(readUC *ReadStateUseCase, subscriber Subscriber) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		readUC:       readUC,
		subscriber:   subscriber,
		pingInterval: 10 * time.Minute,
	}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	memberID, _ := conn.Locals(middlewares.TokenMemberID).(string)
	logger.Log.Info("websocket connected", zap.String("uid", memberID))

	// pubsub goroutine 與讀取迴圈共用同一條連線寫入
	out := &wsWriter{conn: conn}

	ticker := time.NewTicker(h.pingInterval)
	ctxClose, cancel := context.WithCancel(ctx)

	defer func() {
		ticker.Stop()
		logger.Log.Info("websocket close", zap.String("uid", memberID))
		conn.Close()
		cancel()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Debug("websocket closed by client", zap.Int("code", code), zap.String("uid", memberID))
		return nil
	})

	//client發出ping
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	//啟用sub訂閱自己的未讀通知
	if err := h.subscriber.Subscribe(ctxClose, repository.UserChannel(memberID), func(resp domain.WSResponse) {
		out.send(resp)
	}); err != nil {
		logger.Log.Error("subscribe unread channel failed", zap.String("uid", memberID), zap.Error(err))
		out.sendError("subscribe failed")
		return
	}

	// 定期發送 Ping
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := out.ping(); err != nil {
					logger.Log.Warn("ping error", zap.String("uid", memberID), zap.Error(err))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("connection closed", zap.String("uid", memberID))
			} else {
				//直接斷線 1006
				logger.Log.Warn("websocket read error", zap.String("uid", memberID), zap.Error(err))
			}
			return
		}

		if mt != websocket.TextMessage {
			out.sendError("unsupported message type")
			continue
		}
		out.send(h.Dispatch(ctxClose, memberID, message))
	}
}

// Dispatch run one text request for memberID
func (h *ChatWebsocketHandler) Dispatch(ctx context.Context, memberID string, msg []byte) domain.WSResponse {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return domain.WSResponse{Action: "error", Error: "invalid json"}
	}

	resp := domain.WSResponse{Action: req.Action, Payload: map[string]interface{}{}}
	switch domain.Action(req.Action) {
	//進入聊天室即清除未讀
	case domain.EnterRoom:
		cleared, err := h.readUC.MarkAsRead(ctx, memberID, req.RoomID)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Success = true
		resp.Payload["room_id"] = req.RoomID
		resp.Payload["cleared"] = cleared

	case domain.GetUnread:
		p, err := h.readUC.Summary(ctx, memberID)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Success = true
		resp.Payload["unread_total"] = p.UnreadTotal
		resp.Payload["unread_rooms"] = p.UnreadRooms

	default:
		resp.Error = "unknown action"
	}

	if resp.Error != "" {
		logger.Log.Warn("websocket action failed", zap.String("uid", memberID), zap.String("action", req.Action), zap.String("err", resp.Error))
	}
	return resp
}

// wsWriter 序列化同一連線的寫入
type wsWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// send - 發送 JSON 給前端
func (w *wsWriter) send(resp domain.WSResponse) {
	b, _ := json.Marshal(resp)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Warn("write message error", zap.Error(err))
	}
}

func (w *wsWriter) sendError(errorMsg string) {
	w.send(domain.WSResponse{
		Action: "error",
		Error:  errorMsg,
	})
}

func (w *wsWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.PingMessage, []byte("ping"))
}
