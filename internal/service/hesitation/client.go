package hesitation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/zhouzirui/poise/backend/internal/model/interview"
)

// Client 调用远端犹豫度分析服务。
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient 创建分析服务客户端。httpClient 为空时使用 http.DefaultClient，
// 超时由调用方的 context 控制。
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Analyze 上传作答音频与视觉上下文，返回服务的原始响应。
func (c *Client) Analyze(ctx context.Context, req interview.HesitationRequest) (*interview.HesitationResponse, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("audio", "answer"+audioExtension(req.ContentType))
	if err != nil {
		return nil, err
	}
	if _, err = fw.Write(req.Audio); err != nil {
		return nil, err
	}

	fields := []struct{ name, value string }{
		{"eyeContactSeconds", formatSeconds(req.EyeContactSeconds)},
		{"steadyHeadSeconds", formatSeconds(req.SteadyHeadSeconds)},
		{"warmSeconds", formatSeconds(req.WarmSeconds)},
		{"answerDurationSeconds", formatSeconds(req.AnswerDurationSeconds)},
		{"questionText", req.QuestionText},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, err
		}
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", &b)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("hesitation %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out interview.HesitationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("hesitation decode: %w", err)
	}
	return &out, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func audioExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return ".m4a"
	default:
		return ".webm"
	}
}
