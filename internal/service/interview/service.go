package interview

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	model "github.com/zhouzirui/poise/backend/internal/model/interview"
	"github.com/zhouzirui/poise/backend/internal/service/questions"
)

// ReportStore 是报告的持久化存储，会话关闭后仍可读取报告。
type ReportStore interface {
	ReportSink
	Load(ctx context.Context, sessionID string) (model.Report, bool, error)
}

// Config 控制面试服务的默认行为。
type Config struct {
	TickInterval  time.Duration
	QuestionCount int
	Machine       MachineConfig
	Clock         func() time.Time
}

// CreateRequest 描述新会话的参数。
type CreateRequest struct {
	Count int    `json:"count,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Service 管理进行中的面试会话。
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	provider questions.Provider
	analyzer Analyzer
	store    ReportStore
	cfg      Config
	log      *logrus.Entry
}

// NewService 创建面试服务。store 可以为空，此时报告只在会话存活期间可读。
func NewService(provider questions.Provider, analyzer Analyzer, store ReportStore, cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		sessions: make(map[string]*Session),
		provider: provider,
		analyzer: analyzer,
		store:    store,
		cfg:      cfg,
		log:      logrus.WithField("component", "interview"),
	}
}

// Create 创建一个 idle 状态的会话。
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Session, error) {
	count := req.Count
	if count <= 0 {
		count = s.cfg.QuestionCount
	}

	id := uuid.NewString()
	machine := NewMachine(id, req.Role, s.cfg.Clock().UTC(), s.cfg.Machine)

	var sink ReportSink
	if s.store != nil {
		sink = s.store
	}
	session := newSession(machine, s.provider, s.analyzer, sink, SessionConfig{
		TickInterval:  s.cfg.TickInterval,
		QuestionCount: count,
		Clock:         s.cfg.Clock,
	})

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	s.log.WithField("session", id).Info("session created")
	return session.View(ctx)
}

// Get 返回进行中的会话。
func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Apply 对指定会话执行操作。
func (s *Service) Apply(ctx context.Context, id string, action Action) (model.Session, error) {
	session, err := s.Get(id)
	if err != nil {
		return model.Session{}, err
	}
	if err := session.Apply(ctx, action); err != nil {
		return model.Session{}, err
	}
	return session.View(ctx)
}

// Report 优先返回进行中会话的报告，否则从存储中读取。
func (s *Service) Report(ctx context.Context, id string) (model.Report, error) {
	if session, err := s.Get(id); err == nil {
		return session.Report(ctx)
	}
	if s.store == nil {
		return model.Report{}, ErrSessionNotFound
	}
	report, ok, err := s.store.Load(ctx, id)
	if err != nil {
		return model.Report{}, err
	}
	if !ok {
		return model.Report{}, ErrSessionNotFound
	}
	return report, nil
}

// Close 结束并移除会话。
func (s *Service) Close(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	s.log.WithField("session", id).Info("session closed")
	return nil
}

// Shutdown 关闭所有会话。
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
