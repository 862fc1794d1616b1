package interview

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/poise/backend/internal/model/interview"
)

type wsEnvelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

func dialSession(t *testing.T) (*websocket.Conn, model.Session) {
	t.Helper()
	svc := newTestService(t)
	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	s := createSession(t, r)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/interviews/" + s.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, s
}

func sendMessage(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "data": json.RawMessage(raw)}))
}

// readUntil 读取消息直到出现指定类型，返回该消息。
func readUntil(t *testing.T, conn *websocket.Conn, typ string) wsEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg wsEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if msg.Type == typ {
			return msg
		}
	}
}

// collect 读取消息直到每种类型都至少出现一次，返回各类型的第一条。
func collect(t *testing.T, conn *websocket.Conn, types ...string) map[string]wsEnvelope {
	t.Helper()
	want := make(map[string]bool, len(types))
	for _, typ := range types {
		want[typ] = true
	}
	got := make(map[string]wsEnvelope, len(types))
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for len(got) < len(want) {
		var msg wsEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %v: %v", types, err)
		}
		if _, seen := got[msg.Type]; want[msg.Type] && !seen {
			got[msg.Type] = msg
		}
	}
	return got
}

func TestMediaReleaseDoesNotWaitForConnection(t *testing.T) {
	// 没有 writeLoop 在运行，连接也不存在：Release 只能入队。
	client := newWSClient(nil, "s1")
	media := &wsMedia{client: client}

	done := make(chan struct{})
	go func() {
		media.Release()
		media.Release()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Release blocked on the connection")
	}

	require.Len(t, client.queue, 1, "release notifies once")
	msg := <-client.queue
	assert.Equal(t, "media", msg.Type)
	assert.Equal(t, map[string]any{"active": false}, msg.Data)
}

func TestPostDropsWhenQueueFull(t *testing.T) {
	client := newWSClient(nil, "s1")
	for i := 0; i < queueSize; i++ {
		require.True(t, client.post("live", i))
	}
	assert.False(t, client.post("media", nil))
	assert.Len(t, client.queue, queueSize)
}

func TestWebSocketUnknownSession(t *testing.T) {
	svc := newTestService(t)
	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/interviews/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketSendsInitialState(t *testing.T) {
	conn, s := dialSession(t)

	msg := readUntil(t, conn, "state")
	var view model.Session
	require.NoError(t, json.Unmarshal(msg.Data, &view))
	assert.Equal(t, s.ID, view.ID)
	assert.Equal(t, model.StateIdle, view.State)
}

func TestWebSocketStartWithoutHello(t *testing.T) {
	conn, _ := dialSession(t)

	sendMessage(t, conn, "action", ActionMessage{Action: "start"})
	msg := readUntil(t, conn, "error")

	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "device_unavailable", body["code"])
}

func TestWebSocketPermissionDenied(t *testing.T) {
	conn, _ := dialSession(t)

	sendMessage(t, conn, "hello", HelloMessage{Camera: true, Permission: "denied", DetectorReady: true})
	readUntil(t, conn, "ready")
	sendMessage(t, conn, "action", ActionMessage{Action: "start"})

	msg := readUntil(t, conn, "error")
	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "permission_denied", body["code"])
}

func TestWebSocketDetectorNotReady(t *testing.T) {
	conn, _ := dialSession(t)

	sendMessage(t, conn, "hello", HelloMessage{Camera: true, Permission: "granted"})
	readUntil(t, conn, "ready")
	sendMessage(t, conn, "action", ActionMessage{Action: "start"})

	msg := readUntil(t, conn, "error")
	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "detector_unavailable", body["code"])
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	conn, _ := dialSession(t)

	sendMessage(t, conn, "dance", map[string]string{})
	msg := readUntil(t, conn, "error")
	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "unsupported", body["code"])
}

func TestToBinsClamps(t *testing.T) {
	assert.Equal(t, []uint8{0, 12, 255}, toBins([]int{-4, 12, 900}))
}

func TestWebSocketFullInterview(t *testing.T) {
	conn, s := dialSession(t)

	sendMessage(t, conn, "hello", HelloMessage{Camera: true, Permission: "granted", DetectorReady: true})
	readUntil(t, conn, "ready")

	sendMessage(t, conn, "action", ActionMessage{Action: "start"})
	started := collect(t, conn, "media", "speak")
	assert.Contains(t, string(started["media"].Data), `"active":true`)

	speak := started["speak"]
	assert.Equal(t, s.ID, speak.SessionID)
	assert.Contains(t, string(speak.Data), "intro")

	sendMessage(t, conn, "prompt_done", nil)
	sendMessage(t, conn, "action", ActionMessage{Action: "start-answer"})
	sendMessage(t, conn, "frame", FrameMessage{})
	sendMessage(t, conn, "level", LevelMessage{Bins: []int{20, 40}})
	sendMessage(t, conn, "action", ActionMessage{Action: "stop-answer"})

	answer := readUntil(t, conn, "answer")
	var record model.AnswerRecord
	require.NoError(t, json.Unmarshal(answer.Data, &record))
	assert.Equal(t, model.HesitationSkipped, record.HesitationStatus)
	assert.Equal(t, 0, record.QuestionIndex)

	sendMessage(t, conn, "action", ActionMessage{Action: "next"})
	finished := collect(t, conn, "media", "report")
	assert.Contains(t, string(finished["media"].Data), `"active":false`)

	report := finished["report"]
	var r model.Report
	require.NoError(t, json.Unmarshal(report.Data, &r))
	assert.True(t, r.Complete)
	assert.Len(t, r.Items, 1)
}
