package hesitation

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/poise/backend/internal/model/interview"
)

// DefaultTimeout 为单次分析允许的最长耗时。
const DefaultTimeout = 30 * time.Second

// Analyzer is the raw remote call.
type Analyzer interface {
	Analyze(ctx context.Context, req interview.HesitationRequest) (*interview.HesitationResponse, error)
}

// Config 控制犹豫度分析服务。
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Service 把远端调用的各种失败折叠为 HesitationOutcome，从不返回错误。
type Service struct {
	analyzer Analyzer
	timeout  time.Duration
	log      *logrus.Entry
}

// NewService 创建分析服务。analyzer 为空时每次调用都得到 error 结论。
func NewService(analyzer Analyzer, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		analyzer: analyzer,
		timeout:  timeout,
		log:      logrus.WithField("component", "hesitation"),
	}
}

// Enabled 返回是否配置了远端服务。
func (s *Service) Enabled() bool {
	return s != nil && s.analyzer != nil
}

// Analyze 在超时约束下调用远端服务。ctx 被取消（例如会话中止）时同样返回 error 结论。
func (s *Service) Analyze(ctx context.Context, req interview.HesitationRequest) interview.HesitationOutcome {
	if len(req.Audio) == 0 {
		return interview.HesitationOutcome{Status: interview.HesitationSkipped, Reason: "no audio captured"}
	}
	if !s.Enabled() {
		return interview.HesitationOutcome{Status: interview.HesitationError, Reason: "analysis service not configured"}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.analyzer.Analyze(callCtx, req)
	if err != nil {
		reason := err.Error()
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		s.log.WithError(err).WithField("elapsed", time.Since(start)).Warn("hesitation analysis failed")
		return interview.HesitationOutcome{Status: interview.HesitationError, Reason: reason}
	}

	return Interpret(resp)
}

// Interpret 将服务响应归一化。success 但缺少置信度的响应视为不可用。
func Interpret(resp *interview.HesitationResponse) interview.HesitationOutcome {
	if resp == nil {
		return interview.HesitationOutcome{Status: interview.HesitationError, Reason: "empty response"}
	}

	switch resp.Status {
	case interview.HesitationSuccess:
		if resp.ConfidenceScore == nil {
			return interview.HesitationOutcome{Status: interview.HesitationError, Reason: "missing confidence score"}
		}
		return interview.HesitationOutcome{
			Status: interview.HesitationSuccess,
			Result: &interview.HesitationResult{
				ConfidenceScore: *resp.ConfidenceScore,
				Feedback:        resp.Feedback,
				Transcript:      resp.Transcript,
				FillerTokens:    resp.FillerTokens,
			},
		}
	case interview.HesitationNoSpeech:
		return interview.HesitationOutcome{Status: interview.HesitationNoSpeech, Reason: resp.Feedback}
	default:
		reason := resp.Error
		if reason == "" {
			reason = "analysis reported " + string(resp.Status)
		}
		return interview.HesitationOutcome{Status: interview.HesitationError, Reason: reason}
	}
}

// NewFromConfig 根据配置创建服务。BaseURL 为空时服务处于未启用状态。
func NewFromConfig(cfg Config) *Service {
	var analyzer Analyzer
	if cfg.BaseURL != "" {
		analyzer = NewClient(cfg.BaseURL, nil)
	}
	return NewService(analyzer, cfg.Timeout)
}
