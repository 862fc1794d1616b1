package interview

import (
	"sync"
	"time"
)

// EventType 标识推送给订阅者的事件类型。
type EventType string

const (
	EventState  EventType = "state"
	EventLive   EventType = "live"
	EventAnswer EventType = "answer"
	EventSpeak  EventType = "speak"
	EventReport EventType = "report"
	EventError  EventType = "error"
)

// Event 是会话向订阅者广播的一条消息。
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const subscriberBuffer = 64

// broadcaster 以非阻塞方式分发事件，慢订阅者的事件被丢弃。
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *broadcaster) publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
