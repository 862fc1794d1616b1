package interview

import (
	"context"

	"github.com/zhouzirui/poise/backend/internal/analysis/presence"
	model "github.com/zhouzirui/poise/backend/internal/model/interview"
	"github.com/zhouzirui/poise/backend/internal/model/question"
)

// Media 是一次会话期间持有的摄像头与麦克风。
type Media interface {
	HasMicrophone() bool
	AudioContentType() string
	Release()
}

// Devices 获取媒体设备。权限被拒绝时返回 ErrPermissionDenied，
// 设备缺失时返回 ErrDeviceUnavailable。
type Devices interface {
	Acquire(ctx context.Context) (Media, error)
}

// VideoFrame 是客户端送来的一帧画面。浏览器端完成关键点检测时 Face 已填充。
type VideoFrame struct {
	Face *presence.Face
}

// Detector produces face landmarks for a frame.
type Detector interface {
	Load(ctx context.Context) error
	Detect(frame VideoFrame) (*presence.Face, bool)
}

// PromptRenderer 朗读题目，朗读结束后调用 done。
type PromptRenderer interface {
	Speak(ctx context.Context, q question.Question, done func()) error
}

// Client 是连接到会话的前端，同时提供设备、检测器与朗读能力。
type Client interface {
	Devices
	Detector
	PromptRenderer
}

// Analyzer 执行语音犹豫度分析，失败被折叠进 HesitationOutcome。
type Analyzer interface {
	Analyze(ctx context.Context, req model.HesitationRequest) model.HesitationOutcome
}

// ReportSink 保存已结束会话的报告。
type ReportSink interface {
	Save(ctx context.Context, report model.Report) error
}

// PassThroughDetector 直接使用帧内已有的关键点。
type PassThroughDetector struct{}

func (PassThroughDetector) Load(context.Context) error { return nil }

func (PassThroughDetector) Detect(frame VideoFrame) (*presence.Face, bool) {
	return frame.Face, frame.Face != nil
}
