package interview

import (
	"time"

	"github.com/zhouzirui/poise/backend/internal/model/question"
)

// State 是面试会话所处的阶段。
type State string

const (
	StateIdle          State = "idle"
	StateQuestion      State = "question"
	StateReadyToAnswer State = "readyToAnswer"
	StateAnswering     State = "answering"
	StateFeedback      State = "feedback"
	StateSummary       State = "summary"
)

// Session is the externally visible view of one interview run.
type Session struct {
	ID           string              `json:"id"`
	Role         string              `json:"role,omitempty"`
	State        State               `json:"state"`
	Questions    []question.Question `json:"questions"`
	CurrentIndex int                 `json:"currentIndex"`
	Answers      []AnswerRecord      `json:"answers"`
	// Loading 为 true 表示最近一次作答的语音分析尚未返回。
	Loading   bool      `json:"loading"`
	CreatedAt time.Time `json:"createdAt"`
}

// CurrentQuestion returns the question at CurrentIndex, if any.
func (s Session) CurrentQuestion() (question.Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return question.Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// LiveSnapshot 是实时推送给界面的单帧指标。
type LiveSnapshot struct {
	State        State     `json:"state"`
	FaceFound    bool      `json:"faceFound"`
	GazeOnCamera bool      `json:"gazeOnCamera"`
	HeadStable   bool      `json:"headStable"`
	Warm         bool      `json:"warm"`
	Motion       string    `json:"motion"`
	LiveScore    int       `json:"liveScore"`
	Speaking     bool      `json:"speaking"`
	Volume       int       `json:"volume"`
	ElapsedMs    int64     `json:"elapsedMs"`
	Timestamp    time.Time `json:"timestamp"`
}
