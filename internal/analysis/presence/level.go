package presence

// DefaultSpeechThreshold is the average spectrum magnitude above which the
// microphone is considered to carry speech.
const DefaultSpeechThreshold = 15.0

// Level is the live microphone indicator. It never feeds any score.
type Level struct {
	Speaking bool    `json:"speaking"`
	Energy   float64 `json:"energy"`
	Volume   int     `json:"volume"`
}

// LevelMonitor gates live audio energy into speech or silence.
type LevelMonitor struct {
	threshold float64
}

func NewLevelMonitor(threshold float64) LevelMonitor {
	if threshold <= 0 {
		threshold = DefaultSpeechThreshold
	}
	return LevelMonitor{threshold: threshold}
}

// Measure classifies one energy reading on the 0-255 byte spectrum scale.
func (m LevelMonitor) Measure(energy float64) Level {
	if energy < 0 {
		energy = 0
	}
	volume := int(energy / 255 * 100)
	if volume > 100 {
		volume = 100
	}
	return Level{
		Speaking: energy > m.threshold,
		Energy:   energy,
		Volume:   volume,
	}
}

// AverageMagnitude reduces a byte frequency-domain sample to one energy value.
func AverageMagnitude(bins []uint8) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins))
}
