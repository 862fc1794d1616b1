package interview

import "time"

// Durations 记录一次作答中各信号的累计毫秒数。
type Durations struct {
	TotalMs      int64 `json:"totalMs"`
	EyeContactMs int64 `json:"eyeContactMs"`
	SteadyMs     int64 `json:"steadyMs"`
	WarmMs       int64 `json:"warmMs"`
}

// VisualFeedback groups the rule-based observations for one answer.
type VisualFeedback struct {
	Observations []string `json:"observations"`
	Suggestions  []string `json:"suggestions"`
}

// AnswerRecord is the finalized assessment of one question.
type AnswerRecord struct {
	QuestionIndex int    `json:"questionIndex"`
	QuestionID    string `json:"questionId"`
	Question      string `json:"question"`

	EyeContact int `json:"eyeContact"`
	Stability  int `json:"stability"`
	Warmth     int `json:"warmth"`

	VisualScore int `json:"visualScore"`
	AudioScore  int `json:"audioScore"`

	Durations Durations      `json:"durations"`
	Feedback  VisualFeedback `json:"feedback"`

	HesitationStatus HesitationStatus  `json:"hesitationStatus"`
	Hesitation       *HesitationResult `json:"hesitation,omitempty"`

	AnsweredAt time.Time `json:"answeredAt"`
}
