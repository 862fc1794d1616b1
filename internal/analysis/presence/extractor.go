package presence

import "math"

// Motion 描述头部在滑动窗口内的运动类型。
type Motion string

const (
	MotionUnknown Motion = "unknown"
	MotionSteady  Motion = "steady"
	MotionNodding Motion = "nodding"
	MotionMoving  Motion = "moving"
)

// Signals 是单帧提取出的三类信号。FaceFound 为 false 时其余字段无意义。
type Signals struct {
	FaceFound    bool   `json:"faceFound"`
	GazeOnCamera bool   `json:"gazeOnCamera"`
	HeadStable   bool   `json:"headStable"`
	Warm         bool   `json:"warm"`
	Motion       Motion `json:"motion"`
}

// LiveScore 把三类信号折算成 10~100 的实时分数，仅用于界面展示。
func (s Signals) LiveScore() int {
	if !s.FaceFound {
		return 10
	}
	score := 10
	if s.GazeOnCamera {
		score += 40
	}
	if s.HeadStable {
		score += 30
	}
	if s.Warm {
		score += 20
	}
	return score
}

// Thresholds 汇总信号提取使用的固定阈值。
type Thresholds struct {
	// GazeOffset 为鼻尖与两颊中点的最大水平偏移（归一化宽度）。
	GazeOffset float64
	// SteadyDistance 为窗口首尾鼻尖位移的稳定上限。
	SteadyDistance float64
	// NodDistance 为纵向主导位移仍视作点头的上限。
	NodDistance float64
	// Smile 为左右微笑系数之和的阈值。
	Smile float64
	// HistorySize 为鼻尖位置滑动窗口长度。
	HistorySize int
}

// DefaultThresholds 返回默认阈值。视线阈值刻意偏紧。
func DefaultThresholds() Thresholds {
	return Thresholds{
		GazeOffset:     0.025,
		SteadyDistance: 0.02,
		NodDistance:    0.06,
		Smile:          0.5,
		HistorySize:    DefaultHistorySize,
	}
}

// Extractor 根据关键点计算视线、头部稳定性与微笑信号。
// 不是并发安全的，由会话循环独占使用。
type Extractor struct {
	th   Thresholds
	nose *history
}

// NewExtractor 创建信号提取器，零值阈值回退到默认值。
func NewExtractor(th Thresholds) *Extractor {
	def := DefaultThresholds()
	if th.GazeOffset <= 0 {
		th.GazeOffset = def.GazeOffset
	}
	if th.SteadyDistance <= 0 {
		th.SteadyDistance = def.SteadyDistance
	}
	if th.NodDistance <= 0 {
		th.NodDistance = def.NodDistance
	}
	if th.NodDistance < th.SteadyDistance {
		th.NodDistance = th.SteadyDistance
	}
	if th.Smile <= 0 {
		th.Smile = def.Smile
	}
	if th.HistorySize <= 0 {
		th.HistorySize = def.HistorySize
	}
	return &Extractor{th: th, nose: newHistory(th.HistorySize)}
}

// Extract 处理一帧检测结果。face 为 nil 或缺少必要关键点时视为未检测到人脸，
// 此时不写入滑动窗口。
func (e *Extractor) Extract(face *Face) Signals {
	nose, ok := face.landmark(NoseTipIndex)
	if !ok {
		return Signals{Motion: MotionUnknown}
	}
	left, okL := face.landmark(LeftCheekIndex)
	right, okR := face.landmark(RightCheekIndex)
	if !okL || !okR {
		return Signals{Motion: MotionUnknown}
	}

	e.nose.push(nose)
	motion := e.motion()

	mid := (left.X + right.X) / 2
	return Signals{
		FaceFound:    true,
		GazeOnCamera: math.Abs(nose.X-mid) < e.th.GazeOffset,
		HeadStable:   motion != MotionMoving,
		Warm:         face.smile() > e.th.Smile,
		Motion:       motion,
	}
}

func (e *Extractor) motion() Motion {
	oldest, newest, ok := e.nose.span()
	if !ok {
		return MotionSteady
	}
	dx := newest.X - oldest.X
	dy := newest.Y - oldest.Y
	dist := math.Hypot(dx, dy)

	switch {
	case dist < e.th.SteadyDistance:
		return MotionSteady
	case math.Abs(dy) > math.Abs(dx) && dist < e.th.NodDistance:
		return MotionNodding
	default:
		return MotionMoving
	}
}

// Reset 清空鼻尖滑动窗口。
func (e *Extractor) Reset() {
	e.nose.reset()
}
