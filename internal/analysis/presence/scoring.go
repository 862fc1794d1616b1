package presence

import "math"

// AudioEvidence 描述作答音频在融合时的可用程度。
type AudioEvidence int

const (
	// AudioMissing 表示没有录到音频，未调用犹豫度分析。
	AudioMissing AudioEvidence = iota
	// AudioAnalyzed 表示分析服务成功返回了置信度。
	AudioAnalyzed
	// AudioNoSpeech 表示分析服务报告未检测到语音。
	AudioNoSpeech
	// AudioFailed 表示分析调用失败、超时或结果不可用。
	AudioFailed
)

const (
	MinScore = 20
	MaxScore = 100

	// ShortAnswerMs 以下的作答两项分数至少为 ShortAnswerFloor。
	ShortAnswerMs    = 2000
	ShortAnswerFloor = 40

	noSpeechScore     = 30
	failedAudioScore  = 50
	missingAudioScore = 30
)

// Scores 是一次作答的融合结果。
type Scores struct {
	Breakdown Breakdown `json:"breakdown"`
	Visual    int       `json:"visualScore"`
	Audio     int       `json:"audioScore"`
}

// Fuse 根据累计时长与音频分析结果计算视觉分与语音分。
// confidence 仅在 AudioAnalyzed 时生效。
func Fuse(m Metrics, evidence AudioEvidence, confidence float64) Scores {
	b := m.Percentages()
	visual := int(math.Round(float64(b.EyeContact+b.Stability+b.Warmth) / 3))

	var audio int
	switch evidence {
	case AudioAnalyzed:
		if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
			audio = failedAudioScore
		} else {
			audio = int(math.Round(confidence))
		}
	case AudioNoSpeech:
		audio = noSpeechScore
	case AudioFailed:
		audio = failedAudioScore
	default:
		audio = missingAudioScore
	}

	if m.TotalMs < ShortAnswerMs {
		visual = max(visual, ShortAnswerFloor)
		audio = max(audio, ShortAnswerFloor)
	}

	return Scores{
		Breakdown: b,
		Visual:    clampInt(visual, MinScore, MaxScore),
		Audio:     clampInt(audio, MinScore, MaxScore),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
