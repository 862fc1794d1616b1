package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/poise/backend/internal/analysis/presence"
	model "github.com/zhouzirui/poise/backend/internal/model/interview"
	"github.com/zhouzirui/poise/backend/internal/model/question"
	"github.com/zhouzirui/poise/backend/internal/service/hesitation"
	"github.com/zhouzirui/poise/backend/internal/service/interview"
)

const (
	defaultTick = 50 * time.Millisecond
	swayPeriod  = 20
)

// Scenario 描述一次脚本化的模拟面试：每道题由若干信号阶段组成。
type Scenario struct {
	Role       string              `yaml:"role"`
	Tick       time.Duration       `yaml:"tick"`
	Microphone bool                `yaml:"microphone"`
	Questions  []question.Question `yaml:"questions"`
	Answers    []AnswerScript      `yaml:"answers"`

	// AbortAfter 大于 0 时在完成该数量的作答后中止。
	AbortAfter int `yaml:"abortAfter"`
}

// AnswerScript 是一道题的作答过程。
type AnswerScript struct {
	Phases []Phase `yaml:"phases"`

	// Audio 指向录音文件，相对路径以场景文件所在目录为基准。
	Audio string `yaml:"audio"`

	// Hesitation 为脚本给定的分析结果，未配置分析服务时使用。
	Hesitation *ScriptedHesitation `yaml:"hesitation"`
	Retry      bool                `yaml:"retry"`
}

// Phase 在 Duration 内持续产生相同特征的帧。
type Phase struct {
	Duration time.Duration `yaml:"duration"`
	Face     *bool         `yaml:"face"`
	Gaze     bool          `yaml:"gaze"`
	Moving   bool          `yaml:"moving"`
	Smile    bool          `yaml:"smile"`
	Energy   float64       `yaml:"energy"`
}

// ScriptedHesitation 模拟分析服务的响应体。
type ScriptedHesitation struct {
	Status     model.HesitationStatus `yaml:"status"`
	Confidence *float64               `yaml:"confidence"`
	Feedback   string                 `yaml:"feedback"`
	Transcript string                 `yaml:"transcript"`
	Fillers    []string               `yaml:"fillers"`
	Error      string                 `yaml:"error"`
}

func (p Phase) faceVisible() bool { return p.Face == nil || *p.Face }

// LoadScenario 读取 YAML 场景文件，音频路径被解析为绝对路径。
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := ParseScenario(raw)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i := range sc.Answers {
		if a := sc.Answers[i].Audio; a != "" && !filepath.IsAbs(a) {
			sc.Answers[i].Audio = filepath.Join(base, a)
		}
	}
	return sc, nil
}

// ParseScenario 解析场景并补全默认值。
func ParseScenario(raw []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Answers) == 0 {
		return nil, errors.New("scenario has no answers")
	}
	if sc.Tick <= 0 {
		sc.Tick = defaultTick
	}
	if len(sc.Questions) == 0 {
		sc.Questions = question.Seed()
	}
	for i := range sc.Questions {
		if sc.Questions[i].ID == "" {
			sc.Questions[i].ID = fmt.Sprintf("q%d", i+1)
		}
	}
	if len(sc.Answers) > len(sc.Questions) {
		return nil, fmt.Errorf("scenario has %d answers but only %d questions", len(sc.Answers), len(sc.Questions))
	}
	return &sc, nil
}

// Simulate 在合成时钟上驱动状态机，返回最终报告。analyzer 为空时使用脚本结果。
func Simulate(ctx context.Context, sc *Scenario, analyzer interview.Analyzer, start time.Time) (model.Report, error) {
	machine := interview.NewMachine("sim-"+start.Format("20060102150405"), sc.Role, start, interview.MachineConfig{})
	qs := sc.Questions[:len(sc.Answers)]
	if _, err := machine.Start(qs, sc.Microphone, "audio/webm"); err != nil {
		return model.Report{}, err
	}

	now := start
	for i, script := range sc.Answers {
		if sc.AbortAfter > 0 && i >= sc.AbortAfter {
			machine.Abort()
			return machine.Report(now), nil
		}
		if err := machine.PromptFinished(i); err != nil {
			return model.Report{}, err
		}

		rounds := 1
		if script.Retry {
			rounds = 2
		}
		for round := 0; round < rounds; round++ {
			var err error
			now, err = playAnswer(ctx, machine, script, analyzer, now, sc.Tick)
			if err != nil {
				return model.Report{}, fmt.Errorf("answer %d: %w", i+1, err)
			}
			if round+1 < rounds {
				if err := machine.Retry(); err != nil {
					return model.Report{}, err
				}
			}
		}

		if _, _, err := machine.Advance(); err != nil {
			return model.Report{}, err
		}
	}
	return machine.Report(now), nil
}

func playAnswer(ctx context.Context, m *interview.Machine, script AnswerScript, analyzer interview.Analyzer, now time.Time, tick time.Duration) (time.Time, error) {
	if err := m.BeginAnswer(now); err != nil {
		return now, err
	}
	if script.Audio != "" {
		data, err := os.ReadFile(script.Audio)
		if err != nil {
			return now, fmt.Errorf("read audio: %w", err)
		}
		m.WriteAudio(data)
	}

	frame := 0
	for _, phase := range script.Phases {
		end := now.Add(phase.Duration)
		for now.Before(end) {
			now = now.Add(tick)
			var face *presence.Face
			if phase.faceVisible() {
				face = syntheticFace(phase, frame)
			}
			m.ProcessFrame(now, face)
			m.MeasureLevel(phase.Energy)
			frame++
		}
	}

	pending, err := m.EndAnswer(now)
	if err != nil {
		return now, err
	}
	m.CompleteAnswer(pending.Attempt, resolveOutcome(ctx, pending, script, analyzer))
	return now, nil
}

func resolveOutcome(ctx context.Context, p interview.PendingAnswer, script AnswerScript, analyzer interview.Analyzer) model.HesitationOutcome {
	if analyzer != nil && len(p.Request.Audio) > 0 {
		return analyzer.Analyze(ctx, p.Request)
	}
	if script.Hesitation == nil {
		return model.HesitationOutcome{Status: model.HesitationSkipped, Reason: "no scripted result"}
	}
	h := script.Hesitation
	return hesitation.Interpret(&model.HesitationResponse{
		Status:          h.Status,
		ConfidenceScore: h.Confidence,
		Feedback:        h.Feedback,
		Transcript:      h.Transcript,
		FillerTokens:    h.Fillers,
		Error:           h.Error,
	})
}

// syntheticFace 生成满足阶段特征的关键点。移动阶段鼻尖与两颊一起水平漂移。
func syntheticFace(p Phase, frame int) *presence.Face {
	sway := 0.0
	if p.Moving {
		sway = 0.01 * float64(frame%swayPeriod)
	}
	offset := 0.0
	if !p.Gaze {
		offset = 0.06
	}

	landmarks := make([]presence.Point, presence.RightCheekIndex+1)
	landmarks[presence.NoseTipIndex] = presence.Point{X: 0.5 + sway, Y: 0.5}
	landmarks[presence.LeftCheekIndex] = presence.Point{X: 0.4 + sway - offset, Y: 0.5}
	landmarks[presence.RightCheekIndex] = presence.Point{X: 0.6 + sway - offset, Y: 0.5}

	smile := 0.0
	if p.Smile {
		smile = 0.4
	}
	return &presence.Face{
		Landmarks: landmarks,
		BlendShapes: map[string]float64{
			presence.SmileLeft:  smile,
			presence.SmileRight: smile,
		},
	}
}
