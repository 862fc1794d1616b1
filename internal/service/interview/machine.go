package interview

import (
	"fmt"
	"time"

	"github.com/zhouzirui/poise/backend/internal/analysis/presence"
	model "github.com/zhouzirui/poise/backend/internal/model/interview"
	"github.com/zhouzirui/poise/backend/internal/model/question"
)

// PendingAnswer 是已结束录制、等待语音分析的作答。
// Attempt 用于识别过期的分析结果。
type PendingAnswer struct {
	Attempt       uint64
	QuestionIndex int
	Question      question.Question
	Metrics       presence.Metrics
	Request       model.HesitationRequest
	EndedAt       time.Time
}

// Machine 是单个面试会话的同步状态机。时间由调用方传入，
// 不启动任何 goroutine，也不是并发安全的。
type Machine struct {
	id        string
	role      string
	createdAt time.Time

	state     model.State
	questions []question.Question
	index     int
	answers   []model.AnswerRecord
	aborted   bool

	microphone  bool
	audioType   string
	attempt     uint64
	pending     *PendingAnswer
	answerStart time.Time

	extractor *presence.Extractor
	acc       presence.Accumulator
	level     presence.LevelMonitor
	capture   *Capturer

	lastSignals presence.Signals
	lastLevel   presence.Level
}

// MachineConfig 汇总状态机可调参数。
type MachineConfig struct {
	Thresholds      presence.Thresholds
	SpeechThreshold float64
	MaxAudioBytes   int
}

func NewMachine(id, role string, createdAt time.Time, cfg MachineConfig) *Machine {
	return &Machine{
		id:        id,
		role:      role,
		createdAt: createdAt,
		state:     model.StateIdle,
		extractor: presence.NewExtractor(cfg.Thresholds),
		level:     presence.NewLevelMonitor(cfg.SpeechThreshold),
		capture:   NewCapturer(cfg.MaxAudioBytes),
	}
}

func (m *Machine) ID() string              { return m.id }
func (m *Machine) Role() string            { return m.role }
func (m *Machine) State() model.State      { return m.state }
func (m *Machine) Loading() bool           { return m.pending != nil }
func (m *Machine) CurrentIndex() int       { return m.index }
func (m *Machine) Answers() int            { return len(m.answers) }
func (m *Machine) Pending() *PendingAnswer { return m.pending }

// Ticking 返回帧循环是否应当运行：从开始到总结或中止之间。
func (m *Machine) Ticking() bool {
	return m.state != model.StateIdle && m.state != model.StateSummary
}

func (m *Machine) invalid(action string) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, action, m.state)
}

// Start 进入第一题。microphone 与 audioType 来自已获取的媒体设备。
// 返回需要朗读的题目。
func (m *Machine) Start(questions []question.Question, microphone bool, audioType string) (question.Question, error) {
	if m.state != model.StateIdle {
		return question.Question{}, m.invalid("start")
	}
	if len(questions) == 0 {
		return question.Question{}, ErrNoQuestions
	}

	m.questions = append([]question.Question(nil), questions...)
	m.index = 0
	m.answers = nil
	m.aborted = false
	m.pending = nil
	m.attempt++
	m.microphone = microphone
	m.audioType = audioType
	m.extractor.Reset()
	m.lastSignals = presence.Signals{}
	m.state = model.StateQuestion
	return m.questions[0], nil
}

// PromptFinished 处理题目朗读完成的回调。index 不是当前题目时视为过期回调。
func (m *Machine) PromptFinished(index int) error {
	if m.state != model.StateQuestion || index != m.index {
		return m.invalid("prompt-done")
	}
	m.state = model.StateReadyToAnswer
	return nil
}

// BeginAnswer 从零开始累计指标并开始录音。
func (m *Machine) BeginAnswer(now time.Time) error {
	if m.state != model.StateReadyToAnswer {
		return m.invalid("start-answer")
	}
	m.acc.Reset(now)
	m.capture.Begin(m.microphone, m.audioType)
	m.answerStart = now
	m.state = model.StateAnswering
	return nil
}

// EndAnswer 停止累计与录音，进入 feedback 并返回待分析的作答。
func (m *Machine) EndAnswer(now time.Time) (PendingAnswer, error) {
	if m.state != model.StateAnswering {
		return PendingAnswer{}, m.invalid("stop-answer")
	}

	metrics := m.acc.Stop()
	audio, contentType := m.capture.Finish()
	q := m.questions[m.index]

	m.attempt++
	m.pending = &PendingAnswer{
		Attempt:       m.attempt,
		QuestionIndex: m.index,
		Question:      q,
		Metrics:       metrics,
		EndedAt:       now,
		Request: model.HesitationRequest{
			Audio:                 audio,
			ContentType:           contentType,
			EyeContactSeconds:     msToSeconds(metrics.FocusedMs),
			SteadyHeadSeconds:     msToSeconds(metrics.SteadyMs),
			WarmSeconds:           msToSeconds(metrics.WarmMs),
			AnswerDurationSeconds: msToSeconds(metrics.TotalMs),
			QuestionText:          q.Text,
		},
	}
	m.state = model.StateFeedback
	return *m.pending, nil
}

// CompleteAnswer 用分析结论完成待定作答。attempt 不匹配（中止、重答、重新开始之后）
// 的结论被丢弃，返回 false。
func (m *Machine) CompleteAnswer(attempt uint64, outcome model.HesitationOutcome) (model.AnswerRecord, bool) {
	if m.pending == nil || m.pending.Attempt != attempt || m.state != model.StateFeedback {
		return model.AnswerRecord{}, false
	}
	p := m.pending
	m.pending = nil

	record := buildRecord(p, outcome)
	m.answers = append(m.answers, record)
	return record, true
}

// Advance 进入下一题，没有剩余题目时进入 summary。
// 返回下一题以及是否已进入总结。
func (m *Machine) Advance() (question.Question, bool, error) {
	if m.state != model.StateFeedback {
		return question.Question{}, false, m.invalid("next")
	}
	if m.pending != nil {
		return question.Question{}, false, ErrAnswerPending
	}
	if m.index+1 < len(m.questions) {
		m.index++
		m.state = model.StateQuestion
		return m.questions[m.index], false, nil
	}
	m.state = model.StateSummary
	return question.Question{}, true, nil
}

// Retry 重新回答当前题目，丢弃该题已有记录与未返回的分析。
func (m *Machine) Retry() error {
	if m.state != model.StateFeedback {
		return m.invalid("retry")
	}
	m.attempt++
	m.pending = nil
	m.dropAnswer(m.index)
	m.state = model.StateReadyToAnswer
	return nil
}

// Abort 从活动状态回到 idle。已完成的记录保留到下一次 Start。
// idle 与 summary 下不做任何事，返回 false。
func (m *Machine) Abort() bool {
	if m.state == model.StateIdle || m.state == model.StateSummary {
		return false
	}
	if m.acc.Active() {
		m.acc.Stop()
	}
	m.capture.Discard()
	m.attempt++
	m.pending = nil
	m.aborted = true
	m.state = model.StateIdle
	return true
}

// ProcessFrame 提取单帧信号，仅在 answering 状态下累计。
func (m *Machine) ProcessFrame(now time.Time, face *presence.Face) presence.Signals {
	signals := m.extractor.Extract(face)
	if m.state == model.StateAnswering {
		m.acc.Add(now, signals)
	}
	m.lastSignals = signals
	return signals
}

// MeasureLevel 更新实时音量指示，不参与评分。
func (m *Machine) MeasureLevel(energy float64) presence.Level {
	m.lastLevel = m.level.Measure(energy)
	return m.lastLevel
}

// WriteAudio 追加一个音频分片，非 answering 状态下丢弃。
func (m *Machine) WriteAudio(chunk []byte) bool {
	if m.state != model.StateAnswering {
		return false
	}
	return m.capture.Write(chunk)
}

// Live 返回当前实时指标。
func (m *Machine) Live(now time.Time) model.LiveSnapshot {
	snap := model.LiveSnapshot{
		State:        m.state,
		FaceFound:    m.lastSignals.FaceFound,
		GazeOnCamera: m.lastSignals.GazeOnCamera,
		HeadStable:   m.lastSignals.HeadStable,
		Warm:         m.lastSignals.Warm,
		Motion:       string(m.lastSignals.Motion),
		LiveScore:    m.lastSignals.LiveScore(),
		Speaking:     m.lastLevel.Speaking,
		Volume:       m.lastLevel.Volume,
		Timestamp:    now,
	}
	if m.state == model.StateAnswering {
		snap.ElapsedMs = now.Sub(m.answerStart).Milliseconds()
	}
	return snap
}

// View 返回会话的只读视图。
func (m *Machine) View() model.Session {
	return model.Session{
		ID:           m.id,
		Role:         m.role,
		State:        m.state,
		Questions:    append([]question.Question(nil), m.questions...),
		CurrentIndex: m.index,
		Answers:      append([]model.AnswerRecord(nil), m.answers...),
		Loading:      m.pending != nil,
		CreatedAt:    m.createdAt,
	}
}

// Report 汇总当前所有已完成的作答。
func (m *Machine) Report(now time.Time) model.Report {
	return BuildReport(m.id, m.answers, m.state == model.StateSummary, m.aborted, now)
}

func (m *Machine) dropAnswer(index int) {
	kept := m.answers[:0]
	for _, rec := range m.answers {
		if rec.QuestionIndex != index {
			kept = append(kept, rec)
		}
	}
	m.answers = kept
}

func buildRecord(p *PendingAnswer, outcome model.HesitationOutcome) model.AnswerRecord {
	evidence, confidence := audioEvidence(outcome)
	scores := presence.Fuse(p.Metrics, evidence, confidence)
	fb := presence.BuildFeedback(scores.Breakdown)

	status := outcome.Status
	if status == "" {
		status = model.HesitationError
	}

	return model.AnswerRecord{
		QuestionIndex: p.QuestionIndex,
		QuestionID:    p.Question.ID,
		Question:      p.Question.Text,
		EyeContact:    scores.Breakdown.EyeContact,
		Stability:     scores.Breakdown.Stability,
		Warmth:        scores.Breakdown.Warmth,
		VisualScore:   scores.Visual,
		AudioScore:    scores.Audio,
		Durations: model.Durations{
			TotalMs:      p.Metrics.TotalMs,
			EyeContactMs: p.Metrics.FocusedMs,
			SteadyMs:     p.Metrics.SteadyMs,
			WarmMs:       p.Metrics.WarmMs,
		},
		Feedback: model.VisualFeedback{
			Observations: fb.Observations,
			Suggestions:  fb.Suggestions,
		},
		HesitationStatus: status,
		Hesitation:       outcome.Result,
		AnsweredAt:       p.EndedAt,
	}
}

func audioEvidence(outcome model.HesitationOutcome) (presence.AudioEvidence, float64) {
	switch outcome.Status {
	case model.HesitationSuccess:
		if outcome.Result == nil {
			return presence.AudioFailed, 0
		}
		return presence.AudioAnalyzed, outcome.Result.ConfidenceScore
	case model.HesitationNoSpeech:
		return presence.AudioNoSpeech, 0
	case model.HesitationSkipped:
		return presence.AudioMissing, 0
	default:
		return presence.AudioFailed, 0
	}
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}
