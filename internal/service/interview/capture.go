package interview

import "bytes"

// DefaultMaxAnswerAudio 限制单次作答缓存的音频字节数。
const DefaultMaxAnswerAudio = 32 << 20

// Capturer 缓存一次作答的音频分片，结束时产出一个完整音频块。
// 由会话循环独占使用。
type Capturer struct {
	maxBytes    int
	recording   bool
	microphone  bool
	contentType string
	buf         bytes.Buffer
	dropped     int
}

func NewCapturer(maxBytes int) *Capturer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAnswerAudio
	}
	return &Capturer{maxBytes: maxBytes}
}

// Begin 开始一次新的录制，丢弃上一次残留的数据。
func (c *Capturer) Begin(microphone bool, contentType string) {
	c.buf.Reset()
	c.recording = true
	c.microphone = microphone
	c.contentType = contentType
	c.dropped = 0
}

// Write 追加一个分片。未在录制、没有麦克风或超出上限时丢弃并返回 false。
func (c *Capturer) Write(chunk []byte) bool {
	if !c.recording || !c.microphone || len(chunk) == 0 {
		return false
	}
	if c.buf.Len()+len(chunk) > c.maxBytes {
		c.dropped += len(chunk)
		return false
	}
	c.buf.Write(chunk)
	return true
}

// Finish 结束录制。没有麦克风或没有收到任何字节时返回 nil。
func (c *Capturer) Finish() (blob []byte, contentType string) {
	if !c.recording {
		return nil, ""
	}
	c.recording = false
	if !c.microphone || c.buf.Len() == 0 {
		c.buf.Reset()
		return nil, ""
	}
	blob = bytes.Clone(c.buf.Bytes())
	c.buf.Reset()
	return blob, c.contentType
}

// Discard 停止录制并丢弃已缓存的数据。
func (c *Capturer) Discard() {
	c.recording = false
	c.buf.Reset()
}

func (c *Capturer) Recording() bool { return c.recording }

// Dropped 返回本次录制因超出上限而丢弃的字节数。
func (c *Capturer) Dropped() int { return c.dropped }
