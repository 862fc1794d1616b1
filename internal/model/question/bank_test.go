package question

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAMLFillsMissingIDs(t *testing.T) {
	data := []byte(`
questions:
  - text: "Why this company?"
  - id: custom
    text: "  Walk me through your resume.  "
    category: general
  - text: ""
`)
	items, err := ParseYAML(data)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "q1", items[0].ID)
	assert.Equal(t, "custom", items[1].ID)
	assert.Equal(t, "Walk me through your resume.", items[1].Text)
	assert.Equal(t, "general", items[1].Category)
}

func TestParseYAMLEmpty(t *testing.T) {
	_, err := ParseYAML([]byte("questions: []\n"))
	assert.ErrorIs(t, err, ErrEmptyBank)

	_, err = ParseYAML([]byte("questions: [::"))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	require.NoError(t, os.WriteFile(path, []byte("questions:\n  - id: a\n    text: First\n"), 0o600))

	bank, err := LoadYAML(path)
	require.NoError(t, err)

	q, ok := bank.FindByID("a")
	require.True(t, ok)
	assert.Equal(t, "First", q.Text)

	_, err = LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMemoryBankListIsCopy(t *testing.T) {
	bank := NewMemoryBank(Seed())
	list := bank.List()
	list[0].Text = "changed"

	assert.NotEqual(t, "changed", bank.List()[0].Text)
	_, ok := bank.FindByID("missing")
	assert.False(t, ok)
}
