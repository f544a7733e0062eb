package ingestion

import (
	"regexp"
	"strings"
)

// Line patterns for headers and footers that survive PDF text extraction.
var headerFooterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+\s*$`),          // bare page numbers
	regexp.MustCompile(`^Página\s+\d+`),     // "Página X"
	regexp.MustCompile(`^Page\s+\d+`),       // "Page X"
	regexp.MustCompile(`^\d+\s+de\s+\d+$`),  // "X de Y"
	regexp.MustCompile(`(?i)^confidential`), // boilerplate stamps
	regexp.MustCompile(`^©\s*\d{4}`),
	regexp.MustCompile(`^Documento\s+confidencial`),
}

var multiBlank = regexp.MustCompile(`\n{3,}`)
var trailingSpace = regexp.MustCompile(`[ \t]+\n`)

// CleanText normalizes extracted document text before segmentation: strips
// page-number and header/footer lines, drops hyphenation artifacts at line
// breaks, and collapses runs of blank lines so paragraph boundaries stay
// meaningful.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	// Rejoin words hyphenated across line breaks.
	text = strings.ReplaceAll(text, "-\n", "")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isHeaderFooter(trimmed) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	result := strings.Join(cleaned, "\n")
	result = trailingSpace.ReplaceAllString(result, "\n")
	result = multiBlank.ReplaceAllString(result, "\n\n")

	return strings.TrimSpace(result)
}

func isHeaderFooter(line string) bool {
	if line == "" {
		return false
	}
	for _, pattern := range headerFooterPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}
