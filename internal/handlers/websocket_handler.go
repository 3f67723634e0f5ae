package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"huddle/internal/database"
	"huddle/internal/services"
	"huddle/pkg/config"
	"huddle/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler WebSocket处理器
// 订阅租户事件频道，把消息事件实时推送给前端
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	log            *logrus.Logger
	tenantService  *services.TenantService
	channelService *services.ChannelService
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(tenantService *services.TenantService, channelService *services.ChannelService) *WebSocketHandler {
	// 获取CORS配置
	cfg := config.GetConfig()
	allowedOrigins := cfg.CORS.AllowOrigins

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				// 如果允许所有源
				for _, allowed := range allowedOrigins {
					if allowed == "*" {
						return true
					}
				}

				// 如果Origin为空（同源请求），允许
				if origin == "" {
					return true
				}

				for _, allowed := range allowedOrigins {
					if matchOrigin(origin, allowed) {
						return true
					}
				}

				logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024 * 32,
			WriteBufferSize: 1024 * 32,
		},
		log:            logger.GetLogger(),
		tenantService:  tenantService,
		channelService: channelService,
	}
}

// Events 租户事件的WebSocket连接
// WebSocket不支持自定义header，凭证从查询参数传入
// 传channel_uid时只转发该会话的事件，否则转发租户全部事件
func (h *WebSocketHandler) Events(c *gin.Context) {
	publicKey := c.Query("api_key")
	secret := c.Query("api_secret")
	if publicKey == "" || secret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少API凭证"})
		return
	}

	tenant, err := h.tenantService.Authenticate(publicKey, secret, c.GetHeader("Origin"), c.ClientIP())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "认证失败"})
		return
	}

	// 可选的会话过滤
	channelUID := c.Query("channel_uid")
	if channelUID != "" {
		if _, err := h.channelService.GetByUID(tenant.ID, channelUID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "会话不存在"})
			return
		}
	}

	publisher := database.GetPublisher()
	if publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "实时推送不可用"})
		return
	}

	// 升级为WebSocket连接
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.log.WithFields(logrus.Fields{
		"tenant_id":   tenant.ID,
		"channel_uid": channelUID,
		"remote_addr": c.ClientIP(),
	}).Info("WebSocket connection established")

	h.handleEventConnection(conn, publisher.GetClient(), publisher.TenantChannel(tenant.ID), channelUID)
}

// handleEventConnection 订阅租户频道并转发事件
func (h *WebSocketHandler) handleEventConnection(conn *websocket.Conn, client *redis.Client, redisChannel, channelUID string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := client.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	// 等待订阅成功
	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.WithError(err).Error("Failed to subscribe to Redis channel")
		return
	}

	// 启动goroutine处理客户端消息（主要是ping/pong）
	go h.readPump(conn, cancel)

	ch := pubsub.Channel()

	const writeTimeout = 10 * time.Second

	// 心跳ticker - 每60秒发送一次ping
	pingTicker := time.NewTicker(60 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.WithError(err).Error("Failed to send ping")
				return
			}

		case msg := <-ch:
			if msg == nil {
				return
			}

			var event map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.log.WithError(err).Error("Failed to parse event message")
				continue
			}

			// 按会话过滤
			if channelUID != "" {
				if uid, _ := event["channel_uid"].(string); uid != channelUID {
					continue
				}
			}

			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.log.WithError(err).Error("Failed to send event to client")
				return
			}
		}
	}
}

// readPump 处理客户端消息
func (h *WebSocketHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	pongWait := 300 * time.Second
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Error("WebSocket unexpected close")
			}
			break
		}
	}
}

// matchOrigin 检查origin是否匹配allowed模式
// 支持精确匹配和通配符匹配（如 *.example.com）
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}

	if strings.HasPrefix(allowed, "*.") {
		domain := allowed[2:]

		// 去掉协议部分
		originHost := origin
		if idx := strings.Index(origin, "://"); idx != -1 {
			originHost = origin[idx+3:]
		}

		// 去掉端口号（如果有）
		if idx := strings.Index(originHost, ":"); idx != -1 {
			originHost = originHost[:idx]
		}

		if originHost == domain {
			return true
		}

		if strings.HasSuffix(originHost, "."+domain) {
			return true
		}
	}

	return false
}
