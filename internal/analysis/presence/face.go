package presence

// Point 是归一化到画面宽高的关键点坐标。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Face 是单帧的面部关键点与表情系数，由关键点检测器产出。
type Face struct {
	Landmarks   []Point            `json:"landmarks"`
	BlendShapes map[string]float64 `json:"blendShapes,omitempty"`
}

// MediaPipe face mesh 中用到的关键点下标。
const (
	NoseTipIndex    = 1
	LeftCheekIndex  = 234
	RightCheekIndex = 454
)

// 表情系数名称。
const (
	SmileLeft  = "mouthSmileLeft"
	SmileRight = "mouthSmileRight"
)

func (f *Face) landmark(idx int) (Point, bool) {
	if f == nil || idx < 0 || idx >= len(f.Landmarks) {
		return Point{}, false
	}
	return f.Landmarks[idx], true
}

func (f *Face) smile() float64 {
	if f == nil || f.BlendShapes == nil {
		return 0
	}
	return f.BlendShapes[SmileLeft] + f.BlendShapes[SmileRight]
}
