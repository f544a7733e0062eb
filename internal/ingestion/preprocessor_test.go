package ingestion

import (
	"strings"
	"testing"
)

func TestCleanText_RemovesHeadersAndFooters(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"bare page number", "42"},
		{"pagina prefix", "Página 12"},
		{"page prefix", "Page 3"},
		{"x de y", "3 de 120"},
		{"confidential stamp", "CONFIDENTIAL - internal use"},
		{"copyright", "© 2019 Ministerio de Justicia"},
		{"documento confidencial", "Documento confidencial"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "Primer parrafo del informe.\n" + tt.line + "\nSegundo parrafo del informe."
			got := CleanText(input)
			if strings.Contains(got, strings.TrimSpace(tt.line)) {
				t.Errorf("line %q should have been removed:\n%s", tt.line, got)
			}
			if !strings.Contains(got, "Primer parrafo") || !strings.Contains(got, "Segundo parrafo") {
				t.Errorf("content lines were lost:\n%s", got)
			}
		})
	}
}

func TestCleanText_RejoinsHyphenation(t *testing.T) {
	got := CleanText("el peri-\ntaje forense concluyo")
	if !strings.Contains(got, "peritaje") {
		t.Errorf("hyphenated word not rejoined: %q", got)
	}
}

func TestCleanText_CollapsesBlankLines(t *testing.T) {
	got := CleanText("uno\n\n\n\n\ndos")
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank lines not collapsed: %q", got)
	}
	if !strings.Contains(got, "uno\n\ndos") {
		t.Errorf("paragraph boundary lost: %q", got)
	}
}

func TestCleanText_StripsTrailingSpace(t *testing.T) {
	got := CleanText("una linea   \notra linea\t\n")
	if strings.Contains(got, " \n") || strings.Contains(got, "\t") {
		t.Errorf("trailing whitespace survived: %q", got)
	}
}

func TestCleanText_Empty(t *testing.T) {
	if got := CleanText(""); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestIsHeaderFooter_ContentLinesKept(t *testing.T) {
	lines := []string{
		"El caso 42 fue resuelto en 1997.",
		"Página web del instituto",
		"la balística forense",
	}
	for _, line := range lines {
		if isHeaderFooter(line) {
			t.Errorf("%q wrongly classified as header", line)
		}
	}
}
