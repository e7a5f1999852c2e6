package chat

import (
	"fmt"
	"strings"
)

// systemPromptTemplate grounds the assistant in the retrieved passages.
// The answer is restricted to the provided context and rendered as markdown.
const systemPromptTemplate = `You are a helpful AI study assistant. Your task is to answer the user's question based only on the context provided. If the answer is not in the context, say "I could not find an answer in the document." Format your entire response using Markdown. Use headings, lists, and bold text to make the information clear and easy to read.

Context:
%s`

// fallbackAnswer is returned when the model produces an empty completion.
// The turn still counts against the chat quota.
const fallbackAnswer = "The AI could not generate an answer. Please try again."

// buildSystemPrompt joins the context passages and renders the grounding prompt
func buildSystemPrompt(passages []string) string {
	return fmt.Sprintf(systemPromptTemplate, strings.Join(passages, "\n\n"))
}
