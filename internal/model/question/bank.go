package question

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyBank is returned when a bank file holds no usable question.
var ErrEmptyBank = errors.New("question bank is empty")

// Bank exposes question retrieval for handlers and providers.
type Bank interface {
	List() []Question
	FindByID(id string) (Question, bool)
}

// MemoryBank implements Bank with an in-memory slice.
type MemoryBank struct {
	items []Question
}

// NewMemoryBank returns a MemoryBank preloaded with the supplied questions.
func NewMemoryBank(items []Question) *MemoryBank {
	return &MemoryBank{items: append([]Question(nil), items...)}
}

// List returns the questions in bank order.
func (b *MemoryBank) List() []Question {
	return append([]Question(nil), b.items...)
}

// FindByID looks up a question by identifier.
func (b *MemoryBank) FindByID(id string) (Question, bool) {
	for _, item := range b.items {
		if item.ID == id {
			return item, true
		}
	}
	return Question{}, false
}

type bankFile struct {
	Questions []Question `yaml:"questions"`
}

// ParseYAML 解析题库文件内容。缺少 id 的题目按顺序补齐，空文本的题目被忽略。
func ParseYAML(data []byte) ([]Question, error) {
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}

	items := make([]Question, 0, len(file.Questions))
	for i, q := range file.Questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		items = append(items, q)
	}
	if len(items) == 0 {
		return nil, ErrEmptyBank
	}
	return items, nil
}

// LoadYAML 从文件加载题库。
func LoadYAML(path string) (*MemoryBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	items, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewMemoryBank(items), nil
}
