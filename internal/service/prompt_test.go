package service

import (
	"strings"
	"testing"

	"github.com/ncifuentes/crimrag/internal/memory"
	"github.com/ncifuentes/crimrag/internal/retriever"
)

func TestBuildAnswerPromptIncludesPassagesAndQuestion(t *testing.T) {
	candidates := []retriever.Candidate{
		{
			Text:      "El perfil geografico delimita la zona de actuacion del agresor.",
			Partition: "investigation_techniques",
			Metadata: map[string]string{
				"title":                          "Manual de perfilacion",
				retriever.MetadataReliabilityKey: retriever.TierAlta,
			},
		},
		{
			Text:      "La teoria de las actividades rutinarias explica la convergencia.",
			Partition: "criminology_theory",
			Metadata:  map[string]string{},
		},
	}

	prompt := buildAnswerPrompt(candidates, "que es el perfil geografico?", nil)

	for _, want := range []string{
		"[Doc 1]",
		"[Doc 2]",
		"Manual de perfilacion",
		"(Reliability: alta)",
		"(Partition: investigation_techniques)",
		"El perfil geografico delimita",
		"que es el perfil geografico?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	docIdx := strings.Index(prompt, "[Doc 1]")
	qIdx := strings.Index(prompt, "## Question")
	if docIdx > qIdx {
		t.Error("context passages should precede the question")
	}
}

func TestBuildAnswerPromptEmptyContext(t *testing.T) {
	prompt := buildAnswerPrompt(nil, "pregunta", nil)

	if !strings.Contains(prompt, "no relevant passages found") {
		t.Error("empty context should be stated explicitly")
	}
	if !strings.Contains(prompt, "pregunta") {
		t.Error("question missing from prompt")
	}
}

func TestBuildAnswerPromptIncludesHistory(t *testing.T) {
	history := []memory.Exchange{
		{Question: "quien fue Lombroso?", Answer: "un criminologo italiano"},
	}

	prompt := buildAnswerPrompt(nil, "y su teoria?", history)

	if !strings.Contains(prompt, "Conversation History") {
		t.Error("history section missing")
	}
	if !strings.Contains(prompt, "quien fue Lombroso?") {
		t.Error("previous question missing")
	}

	histIdx := strings.Index(prompt, "Conversation History")
	ctxIdx := strings.Index(prompt, "## Context Passages")
	if histIdx > ctxIdx {
		t.Error("history should precede context passages")
	}
}

func TestIsGrounded(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		sourceCount int
		want        bool
	}{
		{"answer with sources", "El perfil geografico es... [Doc 1]", 2, true},
		{"no sources", "respuesta", 0, false},
		{"empty answer", "   ", 3, false},
		{"declared no coverage", "La informacion disponible no cubre esta consulta.", 2, false},
		{"marker case-insensitive", "LA INFORMACION DISPONIBLE NO CUBRE ESTA CONSULTA", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isGrounded(tt.answer, tt.sourceCount); got != tt.want {
				t.Errorf("isGrounded(%q, %d) = %v, want %v", tt.answer, tt.sourceCount, got, tt.want)
			}
		})
	}
}
