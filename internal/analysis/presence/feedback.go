package presence

import "fmt"

const (
	// AxisThreshold 为视线与稳定性的合格线（百分比）。
	AxisThreshold = 60
	// WarmthThreshold 为微笑占比的合格线（百分比），比其他维度低得多。
	WarmthThreshold = 5
)

// Feedback 是基于规则生成的视觉表现点评。
type Feedback struct {
	Observations []string `json:"observations"`
	Suggestions  []string `json:"suggestions"`
}

// BuildFeedback 根据三个维度的百分比生成观察与建议。
func BuildFeedback(b Breakdown) Feedback {
	fb := Feedback{
		Observations: make([]string, 0, 3),
		Suggestions:  make([]string, 0, 3),
	}

	if b.EyeContact < AxisThreshold {
		fb.Observations = append(fb.Observations,
			fmt.Sprintf("You looked at the camera for %d%% of your answer.", b.EyeContact))
		fb.Suggestions = append(fb.Suggestions,
			"Treat the camera lens as the interviewer's eyes and return to it after each thought.")
	} else {
		fb.Observations = append(fb.Observations,
			fmt.Sprintf("Strong eye contact: on camera %d%% of the time.", b.EyeContact))
	}

	if b.Stability < AxisThreshold {
		fb.Observations = append(fb.Observations,
			fmt.Sprintf("Your head was steady for only %d%% of the answer.", b.Stability))
		fb.Suggestions = append(fb.Suggestions,
			"Sit back, plant your feet and keep your head centered; small nods are fine.")
	} else {
		fb.Observations = append(fb.Observations,
			fmt.Sprintf("Composed posture: steady %d%% of the time.", b.Stability))
	}

	if b.Warmth < WarmthThreshold {
		fb.Observations = append(fb.Observations, "Your expression stayed mostly neutral.")
		fb.Suggestions = append(fb.Suggestions,
			"Smile when you greet the question or share something you enjoyed.")
	} else {
		fb.Observations = append(fb.Observations,
			fmt.Sprintf("Warm expression: smiling %d%% of the time.", b.Warmth))
	}

	return fb
}
