package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/poise/backend/internal/model/interview"
)

var simStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

const composedScenario = `
role: backend
microphone: false
answers:
  - phases:
      - duration: 10s
        gaze: true
        smile: true
    hesitation:
      status: success
      confidence: 75
  - phases:
      - duration: 1s
        face: false
`

func TestParseScenarioDefaults(t *testing.T) {
	sc, err := ParseScenario([]byte(composedScenario))
	require.NoError(t, err)
	assert.Equal(t, defaultTick, sc.Tick)
	assert.NotEmpty(t, sc.Questions, "seed questions fill an empty list")
	assert.Len(t, sc.Answers, 2)
	assert.True(t, sc.Answers[0].Phases[0].faceVisible())
	assert.False(t, sc.Answers[1].Phases[0].faceVisible())
}

func TestParseScenarioErrors(t *testing.T) {
	_, err := ParseScenario([]byte("role: x\n"))
	assert.Error(t, err)

	_, err = ParseScenario([]byte(`
questions:
  - text: only one
answers:
  - phases: []
  - phases: []
`))
	assert.Error(t, err)

	_, err = ParseScenario([]byte("answers: [\n"))
	assert.Error(t, err)
}

func TestSimulateScoresScriptedAnswers(t *testing.T) {
	sc, err := ParseScenario([]byte(composedScenario))
	require.NoError(t, err)

	report, err := Simulate(context.Background(), sc, nil, simStart)
	require.NoError(t, err)
	require.Len(t, report.Items, 2)
	assert.True(t, report.Complete)

	first := report.Items[0]
	assert.Equal(t, int64(10000), first.Durations.TotalMs)
	assert.Equal(t, 100, first.EyeContact)
	assert.Equal(t, 100, first.Warmth)
	assert.Equal(t, 100, first.VisualScore)
	assert.Equal(t, 75, first.AudioScore)
	assert.Equal(t, model.HesitationSuccess, first.HesitationStatus)

	second := report.Items[1]
	assert.Zero(t, second.Durations.TotalMs, "no-face frames do not count")
	assert.Equal(t, 40, second.VisualScore, "short answers are floored")
	assert.Equal(t, 40, second.AudioScore)
	assert.Equal(t, model.HesitationSkipped, second.HesitationStatus)
	assert.Equal(t, model.SpeechAnalysisUnavailable, second.SpeechAnalysis)
}

func TestSimulateMovingHeadLowersStability(t *testing.T) {
	sc, err := ParseScenario([]byte(`
answers:
  - phases:
      - duration: 6s
        gaze: true
        moving: true
`))
	require.NoError(t, err)

	report, err := Simulate(context.Background(), sc, nil, simStart)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Less(t, report.Items[0].Stability, 20)
	assert.Equal(t, 100, report.Items[0].EyeContact)
}

func TestSimulateRetryKeepsSingleRecord(t *testing.T) {
	sc, err := ParseScenario([]byte(`
answers:
  - retry: true
    phases:
      - duration: 3s
        gaze: true
`))
	require.NoError(t, err)

	report, err := Simulate(context.Background(), sc, nil, simStart)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, 0, report.Items[0].QuestionIndex)
}

func TestSimulateAbort(t *testing.T) {
	sc, err := ParseScenario([]byte(`
abortAfter: 1
answers:
  - phases:
      - duration: 3s
        gaze: true
  - phases:
      - duration: 3s
`))
	require.NoError(t, err)

	report, err := Simulate(context.Background(), sc, nil, simStart)
	require.NoError(t, err)
	assert.True(t, report.Aborted)
	assert.False(t, report.Complete)
	assert.Len(t, report.Items, 1)
}

func TestRunCommandPrintsReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(composedScenario), 0o644))
	dbPath := filepath.Join(dir, "reports.db")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"run", path, "--hesitation-url", "", "--archive", dbPath})
	require.NoError(t, root.Execute())

	var report model.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Len(t, report.Items, 2)

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"reports", "--archive", dbPath})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), report.SessionID)
}
