package service

import (
	"fmt"
	"strings"

	"github.com/ncifuentes/crimrag/internal/memory"
	"github.com/ncifuentes/crimrag/internal/retriever"
)

// analystSystemPrompt frames the model as a criminology analyst that answers
// strictly from the provided passages.
const analystSystemPrompt = `You are a criminology research analyst. Answer questions using ONLY the provided context passages from the corpus (forensic case files, criminological theory, investigation techniques, legislation).

Rules:
- Base every claim on the context passages; cite them as [Doc N].
- Passages are tagged with a reliability tier (alta, media, baja). Prefer alta sources when passages disagree, and say so when they do.
- If the context does not contain the answer, say "La informacion disponible no cubre esta consulta" and do not speculate.
- Answer in the language of the question.`

// noContextMarker is the phrase the system prompt instructs the model to use
// when the corpus cannot answer.
const noContextMarker = "no cubre esta consulta"

// buildAnswerPrompt assembles the generation prompt: session history, the
// ranked context passages with their provenance tags, and the question.
func buildAnswerPrompt(candidates []retriever.Candidate, query string, history []memory.Exchange) string {
	var sb strings.Builder

	if len(history) > 0 {
		sb.WriteString("## Conversation History\n")
		sb.WriteString("(Previous exchanges in this session for context)\n\n")
		sb.WriteString(memory.FormatForPrompt(history))
		sb.WriteString("\n")
	}

	sb.WriteString("## Context Passages\n\n")
	if len(candidates) == 0 {
		sb.WriteString("(no relevant passages found in the corpus)\n\n")
	}
	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("[Doc %d]", i+1))
		if title := c.Metadata["title"]; title != "" {
			sb.WriteString(fmt.Sprintf(" (Title: %s)", title))
		}
		if c.Partition != "" {
			sb.WriteString(fmt.Sprintf(" (Partition: %s)", c.Partition))
		}
		if tier := c.Metadata[retriever.MetadataReliabilityKey]; tier != "" {
			sb.WriteString(fmt.Sprintf(" (Reliability: %s)", tier))
		}
		sb.WriteString("\n")
		sb.WriteString(c.Text)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Question\n")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	sb.WriteString("## Answer (be direct, cite passages)\n")

	return sb.String()
}

// isGrounded reports whether an answer appears to be backed by retrieved
// context: there were sources, and the model did not declare the corpus
// silent on the question.
func isGrounded(answer string, sourceCount int) bool {
	if sourceCount == 0 {
		return false
	}
	if strings.TrimSpace(answer) == "" {
		return false
	}
	return !strings.Contains(strings.ToLower(answer), noContextMarker)
}
