package presence

// DefaultHistorySize is the number of nose samples kept for stability checks.
const DefaultHistorySize = 50

// history is a fixed-capacity ring of nose positions; a push on a full ring
// overwrites the oldest sample.
type history struct {
	buf   []Point
	start int
	count int
}

func newHistory(size int) *history {
	if size < 2 {
		size = 2
	}
	return &history{buf: make([]Point, size)}
}

func (h *history) push(p Point) {
	if h.count < len(h.buf) {
		h.buf[(h.start+h.count)%len(h.buf)] = p
		h.count++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % len(h.buf)
}

// span returns the oldest and newest samples.
func (h *history) span() (oldest, newest Point, ok bool) {
	if h.count < 2 {
		return Point{}, Point{}, false
	}
	oldest = h.buf[h.start]
	newest = h.buf[(h.start+h.count-1)%len(h.buf)]
	return oldest, newest, true
}

func (h *history) len() int { return h.count }

func (h *history) reset() {
	h.start = 0
	h.count = 0
}
