package presence

import (
	"math"
	"time"
)

// Metrics 是一次作答中各类信号累计的毫秒数。
// 每个维度的两个桶之和恒等于 TotalMs。
type Metrics struct {
	TotalMs      int64 `json:"totalMs"`
	FocusedMs    int64 `json:"focusedMs"`
	DistractedMs int64 `json:"distractedMs"`
	SteadyMs     int64 `json:"steadyMs"`
	MovingMs     int64 `json:"movingMs"`
	WarmMs       int64 `json:"warmMs"`
	NeutralMs    int64 `json:"neutralMs"`
}

// Breakdown 是三个维度的百分比（0~100）。
type Breakdown struct {
	EyeContact int `json:"eyeContact"`
	Stability  int `json:"stability"`
	Warmth     int `json:"warmth"`
}

// Percentages 计算各维度占比，总时长至少按 1ms 计。
func (m Metrics) Percentages() Breakdown {
	total := m.TotalMs
	if total < 1 {
		total = 1
	}
	return Breakdown{
		EyeContact: percent(m.FocusedMs, total),
		Stability:  percent(m.SteadyMs, total),
		Warmth:     percent(m.WarmMs, total),
	}
}

func percent(part, total int64) int {
	p := int(math.Round(float64(part) / float64(total) * 100))
	return clampInt(p, 0, 100)
}

// Accumulator 在作答期间按墙钟时间累计信号。
// 无人脸的帧推进时间基准但不计入任何桶与总时长。
type Accumulator struct {
	metrics Metrics
	last    time.Time
	active  bool
}

// Reset 清零并以 now 作为第一帧的时间基准。
func (a *Accumulator) Reset(now time.Time) {
	a.metrics = Metrics{}
	a.last = now
	a.active = true
}

// Add 计入一帧。未激活时忽略。
func (a *Accumulator) Add(now time.Time, s Signals) {
	if !a.active {
		return
	}
	delta := now.Sub(a.last).Milliseconds()
	a.last = now
	if delta < 0 {
		delta = 0
	}
	if !s.FaceFound || delta == 0 {
		return
	}

	a.metrics.TotalMs += delta
	if s.GazeOnCamera {
		a.metrics.FocusedMs += delta
	} else {
		a.metrics.DistractedMs += delta
	}
	if s.HeadStable {
		a.metrics.SteadyMs += delta
	} else {
		a.metrics.MovingMs += delta
	}
	if s.Warm {
		a.metrics.WarmMs += delta
	} else {
		a.metrics.NeutralMs += delta
	}
}

// Stop 停止累计并返回最终结果。
func (a *Accumulator) Stop() Metrics {
	a.active = false
	return a.metrics
}

// Active 返回是否正在累计。
func (a *Accumulator) Active() bool { return a.active }

// Snapshot 返回当前累计值。
func (a *Accumulator) Snapshot() Metrics { return a.metrics }
