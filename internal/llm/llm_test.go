package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHistory(t *testing.T) {
	in := []Message{
		{Role: "system", Content: "be brief"},
		{Role: "User", Content: "hi"},
		{Role: "model", Content: "hello"},
		{Role: "tool", Content: "ignored"},
		{Role: "assistant", Content: "   "},
		{Role: "user", Content: "question"},
	}
	got := NormalizeHistory(in)
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "question"},
	}, got)
}

func TestEndsWithUser(t *testing.T) {
	assert.False(t, EndsWithUser(nil))
	assert.True(t, EndsWithUser([]Message{{Role: RoleUser, Content: "q"}}))
	assert.False(t, EndsWithUser([]Message{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}}))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewGemini(GeminiConfig{}, nil), NewOpenAI("", 0, nil), NewDeepSeek("", 0, nil))

	assert.Equal(t, []string{"deepseek", "google", "openai"}, r.Names())
	p, ok := r.Get("Google")
	assert.True(t, ok)
	assert.Equal(t, "google", p.Name())
	assert.False(t, r.Has("openrouter"))
}

func TestAsUploader(t *testing.T) {
	_, ok := AsUploader(NewGemini(GeminiConfig{}, nil))
	assert.True(t, ok)
	_, ok = AsUploader(NewOpenAI("", 0, nil))
	assert.True(t, ok)
	_, ok = AsUploader(NewOpenRouter("", 0, nil))
	assert.False(t, ok)
	_, ok = AsUploader(NewDeepSeek("", 0, nil))
	assert.False(t, ok)
}

func TestErrMessage(t *testing.T) {
	assert.Equal(t, "bad model", errMessage([]byte(`{"error":{"message":"bad model","code":400}}`)))
	assert.Equal(t, "quota", errMessage([]byte(`{"error":"quota"}`)))
	assert.Equal(t, "plain text", errMessage([]byte("plain text\n")))
	assert.Equal(t, "no error message", errMessage(nil))
}
