package interview

import "time"

// SpeechAnalysisUnavailable labels report items without a hesitation result.
const SpeechAnalysisUnavailable = "analysis unavailable"

// ReportItem is one AnswerRecord as shown in the session report.
type ReportItem struct {
	AnswerRecord
	SpeechAnalysis string `json:"speechAnalysis"`
}

// Report is the ordered per-question assessment of a session.
type Report struct {
	SessionID     string       `json:"sessionId"`
	Items         []ReportItem `json:"items"`
	AverageVisual int          `json:"averageVisual"`
	AverageAudio  int          `json:"averageAudio"`
	Complete      bool         `json:"complete"`
	Aborted       bool         `json:"aborted"`
	GeneratedAt   time.Time    `json:"generatedAt"`
}
