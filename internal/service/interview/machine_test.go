package interview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poise/backend/internal/analysis/presence"
	model "github.com/zhouzirui/poise/backend/internal/model/interview"
	"github.com/zhouzirui/poise/backend/internal/model/question"
)

var epoch = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func testQuestions(n int) []question.Question {
	return question.Seed()[:n]
}

// testFace 生成一帧关键点。鼻尖固定不动，gaze 为 false 时两颊中点偏离鼻尖。
func testFace(gaze, warm bool) *presence.Face {
	landmarks := make([]presence.Point, 468)
	shift := 0.0
	if !gaze {
		shift = 0.06
	}
	landmarks[presence.NoseTipIndex] = presence.Point{X: 0.5, Y: 0.5}
	landmarks[presence.LeftCheekIndex] = presence.Point{X: 0.4 - shift, Y: 0.5}
	landmarks[presence.RightCheekIndex] = presence.Point{X: 0.6 - shift, Y: 0.5}
	smile := 0.0
	if warm {
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

func startedMachine(t *testing.T, n int) *Machine {
	t.Helper()
	m := NewMachine("s1", "", epoch, MachineConfig{})
	_, err := m.Start(testQuestions(n), true, "audio/webm")
	require.NoError(t, err)
	require.NoError(t, m.PromptFinished(0))
	return m
}

// answer 以 50ms 间隔驱动 frames 帧，face 决定每帧内容。
func answer(t *testing.T, m *Machine, start time.Time, frames int, face func(i int) *presence.Face) time.Time {
	t.Helper()
	require.NoError(t, m.BeginAnswer(start))
	now := start
	for i := 0; i < frames; i++ {
		now = now.Add(50 * time.Millisecond)
		m.ProcessFrame(now, face(i))
	}
	return now
}

func TestMachineHappyPath(t *testing.T) {
	m := startedMachine(t, 2)
	assert.Equal(t, model.StateReadyToAnswer, m.State())

	end := answer(t, m, epoch, 200, func(i int) *presence.Face {
		return testFace(i%5 != 0, i%10 == 0)
	})
	require.True(t, m.WriteAudio([]byte("chunk")))

	p, err := m.EndAnswer(end)
	require.NoError(t, err)
	assert.Equal(t, model.StateFeedback, m.State())
	assert.True(t, m.Loading())
	assert.Equal(t, int64(10000), p.Metrics.TotalMs)
	assert.InDelta(t, 10.0, p.Request.AnswerDurationSeconds, 0.001)
	assert.InDelta(t, 8.0, p.Request.EyeContactSeconds, 0.001)
	assert.Equal(t, []byte("chunk"), p.Request.Audio)

	_, _, err = m.Advance()
	assert.ErrorIs(t, err, ErrAnswerPending)

	rec, ok := m.CompleteAnswer(p.Attempt, model.HesitationOutcome{
		Status: model.HesitationSuccess,
		Result: &model.HesitationResult{ConfidenceScore: 75},
	})
	require.True(t, ok)
	assert.Equal(t, 80, rec.EyeContact)
	assert.Equal(t, 100, rec.Stability)
	assert.Equal(t, 10, rec.Warmth)
	assert.Equal(t, 63, rec.VisualScore)
	assert.Equal(t, 75, rec.AudioScore)

	q, finished, err := m.Advance()
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, testQuestions(2)[1].ID, q.ID)
	assert.Equal(t, model.StateQuestion, m.State())
	assert.True(t, m.Ticking())
}

func TestMachineLastQuestionGoesToSummary(t *testing.T) {
	m := startedMachine(t, 1)
	end := answer(t, m, epoch, 60, func(int) *presence.Face { return testFace(true, false) })
	p, err := m.EndAnswer(end)
	require.NoError(t, err)

	_, ok := m.CompleteAnswer(p.Attempt, model.HesitationOutcome{Status: model.HesitationNoSpeech})
	require.True(t, ok)

	_, finished, err := m.Advance()
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, model.StateSummary, m.State())
	assert.False(t, m.Ticking())

	report := m.Report(end)
	require.Len(t, report.Items, 1)
	assert.True(t, report.Complete)
	assert.Equal(t, 30, report.Items[0].AudioScore)
	assert.Equal(t, model.SpeechAnalysisUnavailable, report.Items[0].SpeechAnalysis)
}

func TestMachineRejectsInvalidTransitions(t *testing.T) {
	m := NewMachine("s1", "", epoch, MachineConfig{})

	assert.ErrorIs(t, m.BeginAnswer(epoch), ErrInvalidTransition)
	_, err := m.EndAnswer(epoch)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, m.Retry(), ErrInvalidTransition)
	_, _, err = m.Advance()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, m.PromptFinished(0), ErrInvalidTransition)

	_, err = m.Start(nil, true, "")
	assert.ErrorIs(t, err, ErrNoQuestions)
	assert.Equal(t, model.StateIdle, m.State())

	_, err = m.Start(testQuestions(1), true, "")
	require.NoError(t, err)
	_, err = m.Start(testQuestions(1), true, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, m.PromptFinished(3), ErrInvalidTransition, "prompt callback for another question")
}

func TestMachineOnlyAnsweringAccumulates(t *testing.T) {
	m := startedMachine(t, 1)

	m.ProcessFrame(epoch.Add(time.Second), testFace(true, true))
	require.NoError(t, m.BeginAnswer(epoch.Add(2*time.Second)))
	now := epoch.Add(3 * time.Second)
	m.ProcessFrame(now, testFace(true, true))

	assert.False(t, m.WriteAudio(nil))
	p, err := m.EndAnswer(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.Metrics.TotalMs)

	m.ProcessFrame(now.Add(time.Second), testFace(true, true))
	assert.False(t, m.WriteAudio([]byte("late")))
	assert.Equal(t, int64(1000), m.acc.Snapshot().TotalMs)
}

func TestMachineNoMicrophoneSkipsAudio(t *testing.T) {
	m := NewMachine("s1", "", epoch, MachineConfig{})
	_, err := m.Start(testQuestions(1), false, "")
	require.NoError(t, err)
	require.NoError(t, m.PromptFinished(0))

	end := answer(t, m, epoch, 100, func(int) *presence.Face { return testFace(true, false) })
	assert.False(t, m.WriteAudio([]byte("noise")))

	p, err := m.EndAnswer(end)
	require.NoError(t, err)
	assert.Nil(t, p.Request.Audio)

	rec, ok := m.CompleteAnswer(p.Attempt, model.HesitationOutcome{Status: model.HesitationSkipped})
	require.True(t, ok)
	assert.Equal(t, 30, rec.AudioScore)
	assert.Nil(t, rec.Hesitation)
}

func TestMachineAbortInSummaryKeepsCompletedReport(t *testing.T) {
	m := startedMachine(t, 1)
	end := answer(t, m, epoch, 60, func(int) *presence.Face { return testFace(true, false) })
	p, err := m.EndAnswer(end)
	require.NoError(t, err)
	_, ok := m.CompleteAnswer(p.Attempt, model.HesitationOutcome{Status: model.HesitationNoSpeech})
	require.True(t, ok)
	_, finished, err := m.Advance()
	require.NoError(t, err)
	require.True(t, finished)

	assert.False(t, m.Abort(), "summary is terminal")
	assert.Equal(t, model.StateSummary, m.State())

	report := m.Report(end)
	assert.True(t, report.Complete)
	assert.False(t, report.Aborted)
	assert.Len(t, report.Items, 1)
}

func TestMachineStaleOutcomeDiscarded(t *testing.T) {
	m := startedMachine(t, 2)
	end := answer(t, m, epoch, 60, func(int) *presence.Face { return testFace(true, false) })
	p, err := m.EndAnswer(end)
	require.NoError(t, err)

	assert.True(t, m.Abort())
	_, ok := m.CompleteAnswer(p.Attempt, model.HesitationOutcome{Status: model.HesitationSuccess, Result: &model.HesitationResult{ConfidenceScore: 90}})
	assert.False(t, ok, "result after abort must be discarded")
	assert.Empty(t, m.Report(end).Items)
}

func TestMachineRetryResetsMetrics(t *testing.T) {
	m := startedMachine(t, 2)

	end := answer(t, m, epoch, 100, func(int) *presence.Face { return testFace(false, false) })
	first, err := m.EndAnswer(end)
	require.NoError(t, err)
	_, ok := m.CompleteAnswer(first.Attempt, model.HesitationOutcome{Status: model.HesitationError})
	require.True(t, ok)
	require.Equal(t, 1, m.Answers())

	require.NoError(t, m.Retry())
	assert.Equal(t, model.StateReadyToAnswer, m.State())
	assert.Equal(t, 0, m.Answers(), "retry drops the record of the question")
	assert.Equal(t, 0, m.CurrentIndex())

	second := end.Add(5 * time.Second)
	end = answer(t, m, second, 40, func(int) *presence.Face { return testFace(true, false) })
	p, err := m.EndAnswer(end)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), p.Metrics.TotalMs)
	assert.Equal(t, int64(2000), p.Metrics.FocusedMs)
}

func TestMachineRetryWhileLoadingDropsPending(t *testing.T) {
	m := startedMachine(t, 1)
	end := answer(t, m, epoch, 40, func(int) *presence.Face { return testFace(true, false) })
	p, err := m.EndAnswer(end)
	require.NoError(t, err)

	require.NoError(t, m.Retry())
	assert.False(t, m.Loading())
	_, ok := m.CompleteAnswer(p.Attempt, model.HesitationOutcome{Status: model.HesitationNoSpeech})
	assert.False(t, ok)
}

func TestMachineAbortAfterFirstFeedbackKeepsRecord(t *testing.T) {
	m := startedMachine(t, 3)
	end := answer(t, m, epoch, 100, func(int) *presence.Face { return testFace(true, true) })
	p, err := m.EndAnswer(end)
	require.NoError(t, err)
	_, ok := m.CompleteAnswer(p.Attempt, model.HesitationOutcome{Status: model.HesitationError})
	require.True(t, ok)

	require.True(t, m.Abort())
	assert.Equal(t, model.StateIdle, m.State())
	assert.False(t, m.Ticking())
	assert.False(t, m.Abort(), "abort from idle is a no-op")

	report := m.Report(end)
	require.Len(t, report.Items, 1)
	assert.True(t, report.Aborted)
	assert.False(t, report.Complete)
	assert.Equal(t, 50, report.Items[0].AudioScore)

	_, err = m.Start(testQuestions(1), true, "")
	require.NoError(t, err)
	assert.Empty(t, m.Report(end).Items, "records are cleared by the next start")
}

func TestMachineAbortWhileAnsweringDiscardsAudio(t *testing.T) {
	m := startedMachine(t, 1)
	answer(t, m, epoch, 10, func(int) *presence.Face { return testFace(true, false) })
	require.True(t, m.WriteAudio([]byte("partial")))

	require.True(t, m.Abort())
	assert.False(t, m.capture.Recording())
	assert.False(t, m.acc.Active())
}

func TestMachineLiveSnapshot(t *testing.T) {
	m := startedMachine(t, 1)
	require.NoError(t, m.BeginAnswer(epoch))
	m.ProcessFrame(epoch.Add(500*time.Millisecond), testFace(true, true))
	m.MeasureLevel(40)

	live := m.Live(epoch.Add(time.Second))
	assert.Equal(t, model.StateAnswering, live.State)
	assert.True(t, live.FaceFound)
	assert.Equal(t, 100, live.LiveScore)
	assert.True(t, live.Speaking)
	assert.Equal(t, int64(1000), live.ElapsedMs)

	m.ProcessFrame(epoch.Add(1100*time.Millisecond), nil)
	assert.Equal(t, 10, m.Live(epoch).LiveScore)
}
