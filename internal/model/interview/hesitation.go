package interview

// HesitationStatus 是语音犹豫度分析的结果状态。
type HesitationStatus string

const (
	HesitationSuccess  HesitationStatus = "success"
	HesitationNoSpeech HesitationStatus = "no_speech"
	HesitationError    HesitationStatus = "error"
	// HesitationSkipped 表示没有录到音频，未调用分析服务。
	HesitationSkipped HesitationStatus = "skipped"
)

// HesitationRequest carries one answer's audio and visual context to the
// analysis service.
type HesitationRequest struct {
	Audio       []byte
	ContentType string

	EyeContactSeconds     float64
	SteadyHeadSeconds     float64
	WarmSeconds           float64
	AnswerDurationSeconds float64
	QuestionText          string
}

// HesitationResponse is the wire body returned by the analysis service.
type HesitationResponse struct {
	Status          HesitationStatus `json:"status"`
	ConfidenceScore *float64         `json:"confidenceScore,omitempty"`
	Feedback        string           `json:"feedback,omitempty"`
	Transcript      string           `json:"transcript,omitempty"`
	FillerTokens    []string         `json:"fillerTokens,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// HesitationResult is the usable part of a successful analysis.
type HesitationResult struct {
	ConfidenceScore float64  `json:"confidenceScore"`
	Feedback        string   `json:"feedback,omitempty"`
	Transcript      string   `json:"transcript,omitempty"`
	FillerTokens    []string `json:"fillerTokens,omitempty"`
}

// HesitationOutcome 是一次分析调用的最终结论，调用方据此计算语音分。
// Result 仅在 Status 为 success 时非空。
type HesitationOutcome struct {
	Status HesitationStatus  `json:"status"`
	Result *HesitationResult `json:"result,omitempty"`
	Reason string            `json:"reason,omitempty"`
}
