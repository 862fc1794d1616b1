package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	model "github.com/zhouzirui/poise/backend/internal/model/interview"
	"github.com/zhouzirui/poise/backend/internal/model/question"
	"github.com/zhouzirui/poise/backend/internal/service/questions"
)

// DefaultTickInterval 约等于 20Hz 的帧循环。
const DefaultTickInterval = 50 * time.Millisecond

const (
	commandBuffer  = 64
	archiveTimeout = 5 * time.Second
)

// Action 是客户端可以触发的会话操作。
type Action string

const (
	ActionStart       Action = "start"
	ActionPromptDone  Action = "prompt-done"
	ActionStartAnswer Action = "start-answer"
	ActionStopAnswer  Action = "stop-answer"
	ActionNext        Action = "next"
	ActionRetry       Action = "retry"
	ActionAbort       Action = "abort"
)

// SessionConfig 控制单个会话的运行参数。
type SessionConfig struct {
	TickInterval  time.Duration
	QuestionCount int
	Clock         func() time.Time
}

// Session 在独立的 goroutine 中运行状态机。所有状态变更都以闭包形式
// 投递到该循环执行，帧循环也在同一循环上触发。
type Session struct {
	machine   *Machine
	cfg       SessionConfig
	questions questions.Provider
	analyzer  Analyzer
	sink      ReportSink
	events    *broadcaster
	inbox     mailbox
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	cmds      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// 以下字段只在循环内访问。
	client         Client
	media          Media
	generation     uint64
	cancelAnalysis context.CancelFunc
}

func newSession(m *Machine, provider questions.Provider, analyzer Analyzer, sink ReportSink, cfg SessionConfig) *Session {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		machine:   m,
		cfg:       cfg,
		questions: provider,
		analyzer:  analyzer,
		sink:      sink,
		events:    newBroadcaster(),
		log:       logrus.WithFields(logrus.Fields{"component": "interview", "session": m.ID()}),
		ctx:       ctx,
		cancel:    cancel,
		cmds:      make(chan func(), commandBuffer),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) ID() string { return s.machine.ID() }

func (s *Session) run() {
	defer close(s.done)

	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		s.shutdown()
	}()

	for {
		switch ticking := s.machine.Ticking(); {
		case ticking && ticker == nil:
			ticker = time.NewTicker(s.cfg.TickInterval)
			tick = ticker.C
		case !ticking && ticker != nil:
			ticker.Stop()
			ticker, tick = nil, nil
		}

		select {
		case <-s.quit:
			return
		case cmd := <-s.cmds:
			cmd()
		case <-tick:
			s.tick()
		}
	}
}

// Close 停止会话循环。进行中的作答按中止处理。
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done 在会话循环退出后关闭。
func (s *Session) Done() <-chan struct{} { return s.done }

// Subscribe 订阅会话事件。返回的函数用于取消订阅。
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// call 在会话循环上执行 fn 并等待结果。
func call[T any](ctx context.Context, s *Session, fn func() (T, error)) (T, error) {
	var zero T
	if s.closed() {
		return zero, ErrSessionClosed
	}
	type result struct {
		val T
		err error
	}
	out := make(chan result, 1)
	cmd := func() {
		v, err := fn()
		out <- result{val: v, err: err}
	}

	select {
	case s.cmds <- cmd:
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-out:
		return r.val, r.err
	case <-s.done:
		select {
		case r := <-out:
			return r.val, r.err
		default:
			return zero, ErrSessionClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	_, err := call(ctx, s, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// post 从其他 goroutine 投递命令，不等待执行。会话关闭后返回 false。
func (s *Session) post(fn func()) bool {
	if s.closed() {
		return false
	}
	select {
	case s.cmds <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Apply 执行一个客户端操作。
func (s *Session) Apply(ctx context.Context, action Action) error {
	switch action {
	case ActionStart:
		return s.do(ctx, func() error { return s.start(ctx) })
	case ActionPromptDone:
		return s.do(ctx, func() error { return s.promptDone(s.generation, s.machine.CurrentIndex()) })
	case ActionStartAnswer:
		return s.do(ctx, s.startAnswer)
	case ActionStopAnswer:
		return s.do(ctx, s.stopAnswer)
	case ActionNext:
		return s.do(ctx, s.next)
	case ActionRetry:
		return s.do(ctx, s.retry)
	case ActionAbort:
		return s.do(ctx, func() error { s.abort("requested"); return nil })
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// View 返回会话当前视图。
func (s *Session) View(ctx context.Context) (model.Session, error) {
	return call(ctx, s, func() (model.Session, error) { return s.machine.View(), nil })
}

// Report 返回当前报告。
func (s *Session) Report(ctx context.Context) (model.Report, error) {
	return call(ctx, s, func() (model.Report, error) { return s.machine.Report(s.cfg.Clock()), nil })
}

// Live 返回最近一帧的实时指标。
func (s *Session) Live(ctx context.Context) (model.LiveSnapshot, error) {
	return call(ctx, s, func() (model.LiveSnapshot, error) { return s.machine.Live(s.cfg.Clock()), nil })
}

// Attach 绑定前端客户端，替换之前的客户端。
func (s *Session) Attach(ctx context.Context, c Client) error {
	return s.do(ctx, func() error {
		s.client = c
		return nil
	})
}

// Detach 解绑客户端。若该客户端仍在进行面试，会话被中止。
func (s *Session) Detach(ctx context.Context, c Client) error {
	return s.do(ctx, func() error {
		if s.client != c {
			return nil
		}
		if s.machine.Ticking() {
			s.abort("client disconnected")
		}
		s.client = nil
		return nil
	})
}

// PushFrame 放入最新一帧，旧的未处理帧被覆盖。
func (s *Session) PushFrame(frame VideoFrame) { s.inbox.putFrame(frame) }

// PushLevel 放入最新的音频能量读数。
func (s *Session) PushLevel(energy float64) { s.inbox.putEnergy(energy) }

// PushAudio 按顺序追加作答音频分片。
func (s *Session) PushAudio(ctx context.Context, chunk []byte) error {
	if s.closed() {
		return ErrSessionClosed
	}
	data := append([]byte(nil), chunk...)
	select {
	case s.cmds <- func() { s.machine.WriteAudio(data) }:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) start(ctx context.Context) (err error) {
	if s.machine.State() != model.StateIdle {
		return s.machine.invalid("start")
	}
	if s.client == nil {
		return fmt.Errorf("%w: no client connected", ErrDeviceUnavailable)
	}

	media, err := s.client.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	defer func() {
		if err != nil {
			media.Release()
		}
	}()

	if err = s.client.Load(ctx); err != nil {
		if !errors.Is(err, ErrDetectorUnavailable) {
			err = fmt.Errorf("%w: %w", ErrDetectorUnavailable, err)
		}
		return err
	}

	qs, err := s.fetchQuestions(ctx)
	if err != nil {
		return err
	}

	first, err := s.machine.Start(qs, media.HasMicrophone(), media.AudioContentType())
	if err != nil {
		return err
	}

	s.media = media
	s.generation++
	s.log.WithFields(logrus.Fields{
		"questions":  len(qs),
		"microphone": media.HasMicrophone(),
	}).Info("interview started")
	s.publishState()
	s.speak(first, 0)
	return nil
}

func (s *Session) fetchQuestions(ctx context.Context) ([]question.Question, error) {
	if s.questions == nil {
		return nil, ErrNoQuestions
	}
	qs, err := s.questions.Questions(ctx, questions.Request{
		Count: s.cfg.QuestionCount,
		Role:  s.machine.Role(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoQuestions, err)
	}
	if len(qs) == 0 {
		return nil, ErrNoQuestions
	}
	return qs, nil
}

func (s *Session) speak(q question.Question, index int) {
	s.publish(EventSpeak, map[string]any{"index": index, "question": q})
	if s.client == nil {
		return
	}

	renderer := s.client
	generation := s.generation
	ctx := s.ctx
	go func() {
		done := func() {
			s.post(func() {
				if err := s.promptDone(generation, index); err != nil {
					s.log.WithError(err).Debug("ignore prompt callback")
				}
			})
		}
		if err := renderer.Speak(ctx, q, done); err != nil {
			s.log.WithError(err).Warn("prompt rendering failed, continue without audio")
			done()
		}
	}()
}

func (s *Session) promptDone(generation uint64, index int) error {
	if generation != s.generation {
		return fmt.Errorf("%w: stale prompt callback", ErrInvalidTransition)
	}
	if err := s.machine.PromptFinished(index); err != nil {
		return err
	}
	s.publishState()
	return nil
}

func (s *Session) startAnswer() error {
	if err := s.machine.BeginAnswer(s.cfg.Clock()); err != nil {
		return err
	}
	s.publishState()
	return nil
}

func (s *Session) stopAnswer() error {
	pending, err := s.machine.EndAnswer(s.cfg.Clock())
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"question":   pending.QuestionIndex,
		"totalMs":    pending.Metrics.TotalMs,
		"audioBytes": len(pending.Request.Audio),
	}).Info("answer captured")
	s.publishState()
	s.analyze(pending)
	return nil
}

func (s *Session) analyze(p PendingAnswer) {
	if len(p.Request.Audio) == 0 {
		s.complete(p.Attempt, model.HesitationOutcome{Status: model.HesitationSkipped, Reason: "no audio captured"})
		return
	}
	if s.analyzer == nil {
		s.complete(p.Attempt, model.HesitationOutcome{Status: model.HesitationError, Reason: "analysis service not configured"})
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelAnalysis = cancel
	analyzer := s.analyzer
	go func() {
		out := analyzer.Analyze(ctx, p.Request)
		s.post(func() { s.complete(p.Attempt, out) })
	}()
}

func (s *Session) complete(attempt uint64, out model.HesitationOutcome) {
	record, ok := s.machine.CompleteAnswer(attempt, out)
	if !ok {
		s.log.WithField("attempt", attempt).Debug("discard stale hesitation result")
		return
	}
	s.stopAnalysis()
	s.log.WithFields(logrus.Fields{
		"question":   record.QuestionIndex,
		"visual":     record.VisualScore,
		"audio":      record.AudioScore,
		"hesitation": record.HesitationStatus,
	}).Info("answer scored")
	s.publish(EventAnswer, record)
	s.publishState()
}

func (s *Session) next() error {
	q, finished, err := s.machine.Advance()
	if err != nil {
		return err
	}
	if finished {
		s.finish()
		return nil
	}
	s.publishState()
	s.speak(q, s.machine.CurrentIndex())
	return nil
}

func (s *Session) retry() error {
	if err := s.machine.Retry(); err != nil {
		return err
	}
	s.stopAnalysis()
	s.publishState()
	return nil
}

func (s *Session) finish() {
	s.releaseMedia()
	report := s.machine.Report(s.cfg.Clock())
	s.archive(report)
	s.log.WithField("answers", len(report.Items)).Info("interview completed")
	s.publishState()
	s.publish(EventReport, report)
}

func (s *Session) abort(reason string) {
	s.stopAnalysis()
	if !s.machine.Abort() {
		return
	}
	s.releaseMedia()
	report := s.machine.Report(s.cfg.Clock())
	if report.Aborted && len(report.Items) > 0 {
		s.archive(report)
	}
	s.log.WithFields(logrus.Fields{
		"reason":  reason,
		"answers": len(report.Items),
	}).Info("interview aborted")
	s.publishState()
}

func (s *Session) shutdown() {
	if s.machine.Ticking() {
		s.abort("session closed")
	}
	s.stopAnalysis()
	s.releaseMedia()
	s.cancel()
	s.events.close()
}

func (s *Session) tick() {
	now := s.cfg.Clock()
	if frame, ok := s.inbox.takeFrame(); ok {
		var detector Detector = PassThroughDetector{}
		if s.client != nil {
			detector = s.client
		}
		face, found := detector.Detect(frame)
		if !found {
			face = nil
		}
		s.machine.ProcessFrame(now, face)
	}
	if energy, ok := s.inbox.takeEnergy(); ok {
		s.machine.MeasureLevel(energy)
	}
	s.publish(EventLive, s.machine.Live(now))
}

func (s *Session) stopAnalysis() {
	if s.cancelAnalysis != nil {
		s.cancelAnalysis()
		s.cancelAnalysis = nil
	}
}

func (s *Session) releaseMedia() {
	if s.media != nil {
		s.media.Release()
		s.media = nil
	}
}

func (s *Session) archive(report model.Report) {
	if s.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := s.sink.Save(ctx, report); err != nil {
		s.log.WithError(err).Warn("archive report failed")
	}
}

func (s *Session) publishState() {
	s.publish(EventState, s.machine.View())
}

func (s *Session) publish(typ EventType, data any) {
	s.events.publish(Event{
		Type:      typ,
		SessionID: s.machine.ID(),
		Data:      data,
		Timestamp: s.cfg.Clock(),
	})
}

// mailbox 保存最新一帧与最新能量读数，新值覆盖旧值。
type mailbox struct {
	mu        sync.Mutex
	frame     VideoFrame
	hasFrame  bool
	energy    float64
	hasEnergy bool
}

func (m *mailbox) putFrame(f VideoFrame) {
	m.mu.Lock()
	m.frame, m.hasFrame = f, true
	m.mu.Unlock()
}

func (m *mailbox) takeFrame() (VideoFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.frame, m.hasFrame
	m.frame, m.hasFrame = VideoFrame{}, false
	return f, ok
}

func (m *mailbox) putEnergy(e float64) {
	m.mu.Lock()
	m.energy, m.hasEnergy = e, true
	m.mu.Unlock()
}

func (m *mailbox) takeEnergy() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.energy, m.hasEnergy
	m.energy, m.hasEnergy = 0, false
	return e, ok
}
