package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tenSecondAnswer() Metrics {
	return Metrics{
		TotalMs:      10000,
		FocusedMs:    8000,
		DistractedMs: 2000,
		SteadyMs:     9000,
		MovingMs:     1000,
		WarmMs:       1000,
		NeutralMs:    9000,
	}
}

func TestFuseTenSecondScenario(t *testing.T) {
	s := Fuse(tenSecondAnswer(), AudioAnalyzed, 75)
	assert.Equal(t, 60, s.Visual)
	assert.Equal(t, 75, s.Audio)
	assert.Equal(t, Breakdown{EyeContact: 80, Stability: 90, Warmth: 10}, s.Breakdown)
}

func TestFuseAudioFallbacks(t *testing.T) {
	m := tenSecondAnswer()
	assert.Equal(t, 30, Fuse(m, AudioNoSpeech, 99).Audio)
	assert.Equal(t, 50, Fuse(m, AudioFailed, 99).Audio)
	missing := Fuse(m, AudioMissing, 0)
	assert.Equal(t, 30, missing.Audio)
	assert.Equal(t, 60, missing.Visual, "visual score is independent of audio")
}

func TestFuseShortAnswerFloor(t *testing.T) {
	m := Metrics{TotalMs: 1500, DistractedMs: 1500, MovingMs: 1500, NeutralMs: 1500}
	s := Fuse(m, AudioNoSpeech, 0)
	assert.Equal(t, 40, s.Visual)
	assert.Equal(t, 40, s.Audio)

	s = Fuse(Metrics{}, AudioMissing, 0)
	assert.Equal(t, 40, s.Visual)
	assert.Equal(t, 40, s.Audio)
}

func TestFuseClampsRange(t *testing.T) {
	m := Metrics{TotalMs: 5000, DistractedMs: 5000, MovingMs: 5000, NeutralMs: 5000}
	low := Fuse(m, AudioAnalyzed, 3)
	assert.Equal(t, 20, low.Visual)
	assert.Equal(t, 20, low.Audio)

	high := Fuse(tenSecondAnswer(), AudioAnalyzed, 140)
	assert.Equal(t, 100, high.Audio)
}

func TestFuseScoresAlwaysInRange(t *testing.T) {
	evidence := []AudioEvidence{AudioMissing, AudioAnalyzed, AudioNoSpeech, AudioFailed}
	for total := int64(0); total <= 12000; total += 1500 {
		for part := int64(0); part <= total; part += 500 {
			m := Metrics{TotalMs: total, FocusedMs: part, SteadyMs: total - part, WarmMs: part / 2}
			for _, ev := range evidence {
				for _, c := range []float64{-20, 0, 55, 250} {
					s := Fuse(m, ev, c)
					assert.GreaterOrEqual(t, s.Visual, MinScore)
					assert.LessOrEqual(t, s.Visual, MaxScore)
					assert.GreaterOrEqual(t, s.Audio, MinScore)
					assert.LessOrEqual(t, s.Audio, MaxScore)
				}
			}
		}
	}
}

func TestBuildFeedbackThresholds(t *testing.T) {
	fb := BuildFeedback(Breakdown{EyeContact: 80, Stability: 90, Warmth: 10})
	assert.Len(t, fb.Observations, 3)
	assert.Empty(t, fb.Suggestions)

	fb = BuildFeedback(Breakdown{EyeContact: 59, Stability: 30, Warmth: 4})
	assert.Len(t, fb.Observations, 3)
	assert.Len(t, fb.Suggestions, 3)

	fb = BuildFeedback(Breakdown{EyeContact: 60, Stability: 60, Warmth: 5})
	assert.Empty(t, fb.Suggestions, "thresholds are inclusive")
}

func TestLevelMonitor(t *testing.T) {
	m := NewLevelMonitor(0)
	assert.False(t, m.Measure(10).Speaking)
	assert.True(t, m.Measure(40).Speaking)
	assert.Equal(t, 100, m.Measure(400).Volume)
	assert.InDelta(t, 20.0, AverageMagnitude([]uint8{10, 30}), 0.001)
	assert.Zero(t, AverageMagnitude(nil))
}
