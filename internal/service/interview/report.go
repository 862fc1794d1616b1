package interview

import (
	"math"
	"sort"
	"time"

	model "github.com/zhouzirui/poise/backend/internal/model/interview"
)

// BuildReport 按题目顺序组装报告。缺少语音分析结果的条目标记为不可用，
// 不影响其余条目。
func BuildReport(sessionID string, answers []model.AnswerRecord, complete, aborted bool, now time.Time) model.Report {
	items := make([]model.ReportItem, 0, len(answers))
	var visualSum, audioSum int
	for _, rec := range answers {
		item := model.ReportItem{AnswerRecord: rec}
		if rec.Hesitation == nil {
			item.SpeechAnalysis = model.SpeechAnalysisUnavailable
		} else {
			item.SpeechAnalysis = string(model.HesitationSuccess)
		}
		items = append(items, item)
		visualSum += rec.VisualScore
		audioSum += rec.AudioScore
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].QuestionIndex < items[j].QuestionIndex
	})

	report := model.Report{
		SessionID:   sessionID,
		Items:       items,
		Complete:    complete,
		Aborted:     aborted,
		GeneratedAt: now,
	}
	if n := len(items); n > 0 {
		report.AverageVisual = int(math.Round(float64(visualSum) / float64(n)))
		report.AverageAudio = int(math.Round(float64(audioSum) / float64(n)))
	}
	return report
}
