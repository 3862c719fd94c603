package llms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptFullSections(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		SystemPrompt: "You are a test assistant.",
		Rules:        "Always answer in English.",
		Context:      "Source: notes.md\nSome indexed content.",
		History: []Turn{
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "first answer"},
		},
		Query: "second question",
	})

	assert.True(t, strings.HasPrefix(prompt, "You are a test assistant."))
	assert.Contains(t, prompt, "ADDITIONAL RULES:\nAlways answer in English.")
	assert.Contains(t, prompt, "[File/Document Context (RAG)]\nSource: notes.md")
	assert.Contains(t, prompt, "[Conversation History]\nHuman: first question\nAssistant: first answer")
	assert.Contains(t, prompt, "[Current Query]\nHuman: second question")
	assert.True(t, strings.HasSuffix(prompt, "\nAssistant:"))

	// Section order is fixed.
	ragIdx := strings.Index(prompt, "[File/Document Context (RAG)]")
	histIdx := strings.Index(prompt, "[Conversation History]")
	queryIdx := strings.Index(prompt, "[Current Query]")
	assert.Less(t, ragIdx, histIdx)
	assert.Less(t, histIdx, queryIdx)
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	prompt := BuildPrompt(PromptInput{Query: "hello"})

	assert.True(t, strings.HasPrefix(prompt, DefaultSystemPrompt))
	assert.NotContains(t, prompt, "[File/Document Context (RAG)]")
	assert.NotContains(t, prompt, "[Conversation History]")
	assert.NotContains(t, prompt, "ADDITIONAL RULES")
	assert.Contains(t, prompt, "[Current Query]\nHuman: hello")
}
