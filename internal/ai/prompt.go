package ai

import (
	"strconv"
	"strings"

	"github.com/xxxsen/aimarket/internal/model"
)

const (
	systemInstruction = "You are a financial analysis assistant. " +
		"Use only the provided context to answer. If the context is insufficient, say you don't know. " +
		"Be concise and objective."

	outputFormatInstruction = "Return a strictly valid JSON object with the following fields: " +
		"summary (string), riskFactors (array of strings), confidenceScore (number between 0 and 1), " +
		"modelUsed (string), tokensUsed (integer). Do not include markdown fences or extra commentary."

	noContextPlaceholder = "(no context)"
)

// PromptBuilder renders the four section analysis prompt. The output depends
// only on its arguments.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Build numbers chunks in the order given, ignoring their chunk index.
func (b *PromptBuilder) Build(query string, chunks []*model.Chunk) string {
	var sb strings.Builder
	sb.Grow(512)
	sb.WriteString("[SYSTEM]\n")
	sb.WriteString(systemInstruction)
	sb.WriteString("\n\n[CONTEXT]\n")
	sb.WriteString(buildContext(chunks))
	sb.WriteString("\n\n[USER QUERY]\n")
	sb.WriteString(query)
	sb.WriteString("\n\n[OUTPUT FORMAT]\n")
	sb.WriteString(outputFormatInstruction)
	return sb.String()
}

func buildContext(chunks []*model.Chunk) string {
	if len(chunks) == 0 {
		return noContextPlaceholder
	}
	lines := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		text := ""
		if chunk != nil {
			text = chunk.ChunkText
		}
		lines = append(lines, strconv.Itoa(i+1)+". "+text)
	}
	return strings.Join(lines, "\n")
}
