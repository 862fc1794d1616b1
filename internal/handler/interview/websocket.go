package interview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/poise/backend/internal/analysis/presence"
	"github.com/zhouzirui/poise/backend/internal/model/question"
	interviewService "github.com/zhouzirui/poise/backend/internal/service/interview"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	maxMessage   = 4 << 20
	actionWait   = 30 * time.Second
	queueSize    = 16
)

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// HelloMessage 声明浏览器端的设备与检测器状态。
type HelloMessage struct {
	Camera        bool   `json:"camera"`
	Microphone    bool   `json:"microphone"`
	Permission    string `json:"permission"`
	DetectorReady bool   `json:"detectorReady"`
	AudioType     string `json:"audioType"`
}

// ActionMessage 触发一个会话操作。
type ActionMessage struct {
	Action string `json:"action"`
}

// FrameMessage 是浏览器端检测出的一帧关键点，Face 为空表示无人脸。
type FrameMessage struct {
	Face *presence.Face `json:"face"`
}

// LevelMessage 是一次麦克风能量读数。提供 Bins 时按频谱平均值计算。
type LevelMessage struct {
	Energy float64 `json:"energy"`
	Bins   []int   `json:"bins,omitempty"`
}

// AudioMessage 是 base64 编码的录音分片，也可以直接发送二进制帧。
type AudioMessage struct {
	Data []byte `json:"data"`
}

// wsClient 把一条 WebSocket 连接适配为会话的客户端。
type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	log       *logrus.Entry

	writeMu sync.Mutex

	// queue 存放会话循环发出的通知，由 writeLoop 写出，会话循环不直接写连接。
	queue chan outgoingMessage

	mu         sync.Mutex
	hello      *HelloMessage
	promptDone func()
}

func newWSClient(conn *websocket.Conn, sessionID string) *wsClient {
	return &wsClient{
		conn:      conn,
		sessionID: sessionID,
		queue:     make(chan outgoingMessage, queueSize),
		log:       logrus.WithFields(logrus.Fields{"component": "websocket", "session": sessionID}),
	}
}

func (c *wsClient) setHello(h HelloMessage) {
	c.mu.Lock()
	c.hello = &h
	c.mu.Unlock()
}

func (c *wsClient) currentHello() *HelloMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello
}

// Acquire 根据 hello 中声明的权限与设备决定能否开始。
func (c *wsClient) Acquire(ctx context.Context) (interviewService.Media, error) {
	hello := c.currentHello()
	if hello == nil {
		return nil, errors.Join(interviewService.ErrDeviceUnavailable, errors.New("client has not sent hello"))
	}
	if hello.Permission == "denied" {
		return nil, interviewService.ErrPermissionDenied
	}
	if !hello.Camera {
		return nil, errors.Join(interviewService.ErrDeviceUnavailable, errors.New("camera not available"))
	}

	c.post("media", map[string]any{"active": true, "microphone": hello.Microphone})
	return &wsMedia{client: c, microphone: hello.Microphone, audioType: hello.AudioType}, nil
}

func (c *wsClient) Load(ctx context.Context) error {
	hello := c.currentHello()
	if hello == nil || !hello.DetectorReady {
		return interviewService.ErrDetectorUnavailable
	}
	return nil
}

func (c *wsClient) Detect(frame interviewService.VideoFrame) (*presence.Face, bool) {
	return interviewService.PassThroughDetector{}.Detect(frame)
}

// Speak 请求前端朗读题目，前端回复 prompt_done 时调用 done。
func (c *wsClient) Speak(ctx context.Context, q question.Question, done func()) error {
	c.mu.Lock()
	c.promptDone = done
	c.mu.Unlock()
	return c.send("speak", map[string]any{"question": q})
}

func (c *wsClient) finishPrompt() bool {
	c.mu.Lock()
	done := c.promptDone
	c.promptDone = nil
	c.mu.Unlock()
	if done == nil {
		return false
	}
	done()
	return true
}

func (c *wsClient) message(typ string, data interface{}) outgoingMessage {
	return outgoingMessage{
		Type:      typ,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (c *wsClient) send(typ string, data interface{}) error {
	return c.write(c.message(typ, data))
}

// post 把消息放入写队列，不等待写出。队列满时丢弃并返回 false。
func (c *wsClient) post(typ string, data interface{}) bool {
	select {
	case c.queue <- c.message(typ, data):
		return true
	default:
		c.log.WithField("type", typ).Warn("outgoing queue full, message dropped")
		return false
	}
}

// writeLoop 写出队列中的消息，直到 ctx 结束。
func (c *wsClient) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.queue:
			if err := c.write(msg); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) write(msg outgoingMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.WithError(err).WithField("type", msg.Type).Debug("write message failed")
		return err
	}
	return nil
}

func (c *wsClient) sendError(code, message string) {
	c.send("error", map[string]string{"code": code, "message": message})
}

type wsMedia struct {
	client     *wsClient
	microphone bool
	audioType  string
	once       sync.Once
}

func (m *wsMedia) HasMicrophone() bool      { return m.microphone }
func (m *wsMedia) AudioContentType() string { return m.audioType }

// Release 通知前端停止摄像头与麦克风。
func (m *wsMedia) Release() {
	m.once.Do(func() {
		m.client.post("media", map[string]any{"active": false})
	})
}

// handleWebSocket 处理前端的实时连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.svc.Get(id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessage)

	client := newWSClient(conn, id)
	client.log.Info("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := session.Attach(ctx, client); err != nil {
		client.sendError("session_closed", err.Error())
		return
	}
	defer func() {
		detachCtx, detachCancel := context.WithTimeout(context.Background(), writeTimeout)
		defer detachCancel()
		if err := session.Detach(detachCtx, client); err != nil && !errors.Is(err, interviewService.ErrSessionClosed) {
			client.log.WithError(err).Warn("detach failed")
		}
		client.log.Info("client disconnected")
	}()

	events, unsubscribe := session.Subscribe()
	defer unsubscribe()
	go client.writeLoop(ctx)
	go forwardEvents(ctx, client, events)
	go pingLoop(ctx, client)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	if view, err := session.View(ctx); err == nil {
		client.send("state", view)
	}

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				client.log.WithError(err).Warn("read error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msgType == websocket.BinaryMessage {
			if err := session.PushAudio(ctx, payload); err != nil {
				return
			}
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			client.sendError("bad_message", "invalid message")
			continue
		}
		if msg.SessionID != "" && msg.SessionID != id {
			client.sendError("session_mismatch", "session mismatch")
			continue
		}
		if !h.handleMessage(ctx, session, client, &msg) {
			return
		}
	}
}

// handleMessage 处理一条入站消息，返回 false 表示会话已关闭。
func (h *Handler) handleMessage(ctx context.Context, session *interviewService.Session, client *wsClient, msg *inboundMessage) bool {
	switch msg.Type {
	case "hello":
		var hello HelloMessage
		if err := json.Unmarshal(msg.Data, &hello); err != nil {
			client.sendError("bad_message", "invalid hello payload")
			return true
		}
		client.setHello(hello)
		client.send("ready", map[string]any{"sessionId": session.ID()})

	case "action":
		var action ActionMessage
		if err := json.Unmarshal(msg.Data, &action); err != nil || action.Action == "" {
			client.sendError("bad_message", "invalid action payload")
			return true
		}
		actionCtx, cancel := context.WithTimeout(ctx, actionWait)
		err := session.Apply(actionCtx, interviewService.Action(action.Action))
		cancel()
		if err != nil {
			if errors.Is(err, interviewService.ErrSessionClosed) {
				return false
			}
			_, code := classify(err)
			client.sendError(code, err.Error())
		}

	case "frame":
		var frame FrameMessage
		if err := json.Unmarshal(msg.Data, &frame); err != nil {
			client.sendError("bad_message", "invalid frame payload")
			return true
		}
		session.PushFrame(interviewService.VideoFrame{Face: frame.Face})

	case "level":
		var level LevelMessage
		if err := json.Unmarshal(msg.Data, &level); err != nil {
			client.sendError("bad_message", "invalid level payload")
			return true
		}
		energy := level.Energy
		if len(level.Bins) > 0 {
			energy = presence.AverageMagnitude(toBins(level.Bins))
		}
		session.PushLevel(energy)

	case "audio":
		var audio AudioMessage
		if err := json.Unmarshal(msg.Data, &audio); err != nil {
			client.sendError("bad_message", "invalid audio payload")
			return true
		}
		if err := session.PushAudio(ctx, audio.Data); err != nil {
			return false
		}

	case "prompt_done":
		if !client.finishPrompt() {
			client.log.Debug("prompt_done without pending prompt")
		}

	default:
		client.sendError("unsupported", "unsupported message type: "+msg.Type)
	}
	return true
}

func toBins(values []int) []uint8 {
	bins := make([]uint8, len(values))
	for i, v := range values {
		bins[i] = uint8(min(max(v, 0), 255))
	}
	return bins
}

// forwardEvents 把会话事件转发给前端。朗读请求由 Speak 直接发送。
func forwardEvents(ctx context.Context, client *wsClient, events <-chan interviewService.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				client.send("closed", nil)
				return
			}
			if evt.Type == interviewService.EventSpeak {
				continue
			}
			if err := client.send(string(evt.Type), evt.Data); err != nil {
				return
			}
		}
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, client *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client.writeMu.Lock()
			err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			client.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
