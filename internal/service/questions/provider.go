package questions

import (
	"context"
	"errors"

	"github.com/zhouzirui/poise/backend/internal/model/question"
)

// ErrNoQuestions is returned when a provider has nothing to ask.
var ErrNoQuestions = errors.New("no questions available")

// Request 描述一次面试需要的题目。
type Request struct {
	Count int
	Role  string
}

// Provider supplies the ordered question list for a session.
type Provider interface {
	Questions(ctx context.Context, req Request) ([]question.Question, error)
}

// StaticProvider 按题库顺序返回前 Count 道题。
type StaticProvider struct {
	bank question.Bank
}

// NewStaticProvider wraps a question bank.
func NewStaticProvider(bank question.Bank) *StaticProvider {
	return &StaticProvider{bank: bank}
}

// Questions returns up to req.Count questions; Count <= 0 means the whole bank.
func (p *StaticProvider) Questions(_ context.Context, req Request) ([]question.Question, error) {
	if p == nil || p.bank == nil {
		return nil, ErrNoQuestions
	}
	items := p.bank.List()
	if len(items) == 0 {
		return nil, ErrNoQuestions
	}
	if req.Count > 0 && req.Count < len(items) {
		items = items[:req.Count]
	}
	return items, nil
}
