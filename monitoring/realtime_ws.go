package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"accidentlab/risk"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
	sendBuffer   = 16
	readMaxBytes = 4096
)

// MessageType 消息类型
type MessageType string

const (
	RiskLevel     MessageType = "risk_level"
	RulesReloaded MessageType = "rules_reloaded"
	ErrorMessage  MessageType = "error"
	Heartbeat     MessageType = "heartbeat"
)

// Message 服务端推送的消息
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	ID        string          `json:"id"`
}

// ClientMessage 客户端消息：input 替换全部输入，set 修改单个控件
type ClientMessage struct {
	Type  string      `json:"type"`
	Field string      `json:"field,omitempty"`
	Value int         `json:"value,omitempty"`
	Input *risk.Input `json:"input,omitempty"`
}

// Client 一个连接对应一个风险控件。send 从不关闭，连接结束以 quit 通知
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	quit     chan struct{}
	stopOnce sync.Once
	hubDone  <-chan struct{}
	clientID string

	mu     sync.Mutex
	widget *risk.Widget
}

// RiskHub 风险控件 WebSocket 中心
type RiskHub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	doneOnce   sync.Once
	mu         sync.RWMutex
	upgrader   websocket.Upgrader

	scorer  risk.Scorer
	metrics *Registry
	logger  *zap.Logger
}

// NewRiskHub 创建中心；metrics 可为空
func NewRiskHub(scorer risk.Scorer, metrics *Registry, logger *zap.Logger) *RiskHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskHub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		scorer:  scorer,
		metrics: metrics,
		logger:  logger,
	}
}

// Run 处理注册与注销，ctx 结束时关闭所有连接；返回后注册与注销不再阻塞
func (h *RiskHub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.setClientGauge(total)
			h.logger.Debug("risk client connected", zap.String("client", client.clientID), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.stop()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.setClientGauge(total)
			h.logger.Debug("risk client disconnected", zap.String("client", client.clientID), zap.Int("total", total))

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.stop()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.setClientGauge(0)
			return
		}
	}
}

// ClientCount 当前连接数
func (h *RiskHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket 升级连接，创建控件并立即推送一次结果
func (h *RiskHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		quit:     make(chan struct{}),
		hubDone:  h.done,
		clientID: uuid.NewString(),
	}
	client.mu.Lock()
	client.widget = risk.NewWidget(h.scorer, func(a risk.Assessment, err error) {
		h.metrics.recordRisk(a.Label, err)
		client.push(h.assessmentMessage(RiskLevel, a, err))
	})
	client.mu.Unlock()

	select {
	case h.register <- client:
	case <-h.done:
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub stopped"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump(h.logger)
	go client.readPump(h)
}

// Refresh 评分表重载后，对每个连接重新计算并推送
func (h *RiskHub) Refresh() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		c.widget.Refresh()
		c.mu.Unlock()
	}
}

func (h *RiskHub) assessmentMessage(t MessageType, a risk.Assessment, err error) []byte {
	msg := Message{Type: t, Timestamp: time.Now(), ID: uuid.NewString()}
	var payload interface{} = struct {
		risk.Assessment
		Line string `json:"line"`
	}{a, a.String()}
	if err != nil {
		msg.Type = ErrorMessage
		payload = map[string]string{"error": err.Error()}
	}
	data, _ := json.Marshal(payload)
	msg.Data = data
	out, _ := json.Marshal(msg)
	return out
}

func (h *RiskHub) setClientGauge(n int) {
	if h.metrics != nil {
		h.metrics.WebSocketClients.Set(float64(n))
	}
}

func (r *Registry) recordRisk(label string, err error) {
	if r != nil {
		r.RecordRisk(label, err)
	}
}

func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.quit) })
}

// push 非阻塞发送；连接或中心已结束、缓冲区满时丢弃
func (c *Client) push(message []byte) {
	select {
	case <-c.quit:
		return
	case <-c.hubDone:
		return
	default:
	}
	select {
	case c.send <- message:
	default:
	}
}

// writePump WebSocket写入泵
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write failed", zap.String("client", c.clientID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump WebSocket读取泵
func (c *Client) readPump(h *RiskHub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
			c.stop()
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(readMaxBytes)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("client", c.clientID), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.push(h.assessmentMessage(ErrorMessage, risk.Assessment{}, fmt.Errorf("invalid message: %w", err)))
			continue
		}
		if err := c.handleClientMessage(msg); err != nil {
			c.push(h.assessmentMessage(ErrorMessage, risk.Assessment{}, err))
		}
	}
}

// handleClientMessage 每次输入变化同步重新计算
func (c *Client) handleClientMessage(msg ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case "input":
		if msg.Input == nil {
			return fmt.Errorf("input message without input")
		}
		c.widget.Apply(*msg.Input)
	case "set":
		switch msg.Field {
		case "time":
			c.widget.SetTime(msg.Value)
		case "weather":
			c.widget.SetWeather(msg.Value)
		case "road":
			c.widget.SetRoad(msg.Value)
		case "traffic":
			c.widget.SetTraffic(msg.Value)
		default:
			return fmt.Errorf("unknown field %q", msg.Field)
		}
	case "ping":
		msg, _ := json.Marshal(Message{Type: Heartbeat, Timestamp: time.Now(), ID: uuid.NewString()})
		c.push(msg)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}
