package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/poise/backend/internal/model/question"
)

const defaultRole = "a general professional role"

// AdaptiveProvider 使用大模型按岗位生成题目，任何失败都回退到 fallback。
type AdaptiveProvider struct {
	generator compose.Runnable[map[string]any, *schema.Message]
	fallback  Provider
	log       *logrus.Entry
}

// NewAdaptiveProvider 编译出题链路。chatModel 为空时直接使用 fallback。
func NewAdaptiveProvider(ctx context.Context, chatModel model.ChatModel, fallback Provider) (*AdaptiveProvider, error) {
	p := &AdaptiveProvider{
		fallback: fallback,
		log:      logrus.WithField("component", "questions"),
	}
	if chatModel == nil {
		return p, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(generatorSystemPrompt),
		schema.UserMessage(generatorUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile question generator chain: %w", err)
	}
	p.generator = runnable
	return p, nil
}

// Enabled 返回是否接入了大模型。
func (p *AdaptiveProvider) Enabled() bool {
	return p != nil && p.generator != nil
}

func (p *AdaptiveProvider) Questions(ctx context.Context, req Request) ([]question.Question, error) {
	if !p.Enabled() {
		return p.fallbackQuestions(ctx, req)
	}

	count := req.Count
	if count <= 0 {
		count = 3
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = defaultRole
	}

	msg, err := p.generator.Invoke(ctx, map[string]any{
		"count": count,
		"role":  role,
	})
	if err != nil {
		p.log.WithError(err).Warn("question generator invoke failed, use fallback")
		return p.fallbackQuestions(ctx, req)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return p.fallbackQuestions(ctx, req)
	}

	items, err := parseGeneratedQuestions(msg.Content, count)
	if err != nil {
		p.log.WithError(err).Warn("question generator output parse failed, use fallback")
		return p.fallbackQuestions(ctx, req)
	}
	return items, nil
}

func (p *AdaptiveProvider) fallbackQuestions(ctx context.Context, req Request) ([]question.Question, error) {
	if p == nil || p.fallback == nil {
		return nil, ErrNoQuestions
	}
	return p.fallback.Questions(ctx, req)
}

// parseGeneratedQuestions 提取模型输出中的 JSON 字符串数组。
func parseGeneratedQuestions(content string, limit int) ([]question.Question, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json array")
	}

	var texts []string
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &texts); err != nil {
		return nil, err
	}

	items := make([]question.Question, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		items = append(items, question.Question{
			ID:       fmt.Sprintf("gen-%d", len(items)+1),
			Text:     text,
			Category: "generated",
		})
		if limit > 0 && len(items) == limit {
			break
		}
	}
	if len(items) == 0 {
		return nil, ErrNoQuestions
	}
	return items, nil
}

const generatorSystemPrompt = "You are an experienced hiring manager preparing a spoken mock interview. Write open-ended questions a candidate can answer aloud in one to two minutes. Output only a JSON array of strings, with no numbering and no extra text."

const generatorUserPrompt = "Role: {role}\nNumber of questions: {count}\nReturn the JSON array now."
