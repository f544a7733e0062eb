package ingestion

import (
	"regexp"
	"strconv"
	"strings"
)

// Source reliability tiers. Documents from official or judicial authorities
// rank alta; general academic and police material media; everything the
// extractor cannot vouch for takes the configured default.
const (
	ReliabilityHigh   = "alta"
	ReliabilityMedium = "media"
	ReliabilityLow    = "baja"
)

// Metadata keys written by the extractor.
const (
	MetaCrimeType         = "crime_type"
	MetaDocumentAuthority = "document_authority"
	MetaDocumentType      = "document_type"
	MetaGeography         = "geography"
	MetaYear              = "year"
	MetaSourceReliability = "source_reliability"
)

// Extractor tags document text with criminological metadata using regex
// pattern matching. It runs once per document at ingestion time; chunk
// metadata inherits the document's tags.
type Extractor struct {
	// DefaultReliability is the tier assigned when no authority signal is
	// found. A content-trust policy choice, not an algorithmic property.
	DefaultReliability string
}

// NewExtractor creates an extractor with the given default reliability tier.
// An empty tier defaults to alta, matching the technical nature of this corpus.
func NewExtractor(defaultReliability string) *Extractor {
	if defaultReliability == "" {
		defaultReliability = ReliabilityHigh
	}
	return &Extractor{DefaultReliability: defaultReliability}
}

var crimePatterns = []struct {
	crimeType string
	pattern   *regexp.Regexp
}{
	{"homicidio_serial", regexp.MustCompile(`(?i)\b(asesino\s+serial|serial\s+killer|homicidio\s+serial)\b`)},
	{"homicidio", regexp.MustCompile(`(?i)\b(homicidio|asesinato|murder|homicide)\b`)},
	{"violencia_domestica", regexp.MustCompile(`(?i)\b(violencia\s+doméstica|domestic\s+violence)\b`)},
	{"crimen_organizado", regexp.MustCompile(`(?i)\b(crimen\s+organizado|organized\s+crime|mafia)\b`)},
	{"terrorismo", regexp.MustCompile(`(?i)\b(terrorismo|terrorism|terrorista)\b`)},
	{"trata_personas", regexp.MustCompile(`(?i)\b(trata\s+de\s+personas|human\s+trafficking)\b`)},
}

var authorityPatterns = []struct {
	authority string
	pattern   *regexp.Regexp
}{
	{"FBI", regexp.MustCompile(`(?i)\b(FBI|Federal\s+Bureau\s+of\s+Investigation)\b`)},
	{"DOJ", regexp.MustCompile(`(?i)\b(DOJ|Department\s+of\s+Justice|Departamento\s+de\s+Justicia)\b`)},
	{"UNODC", regexp.MustCompile(`(?i)\bUNODC\b`)},
	{"judicial", regexp.MustCompile(`(?i)\b(sentencia|tribunal|court|judicial)\b`)},
	{"académico", regexp.MustCompile(`(?i)\b(universidad|university|académico|academic|paper|artículo)\b`)},
	{"policial", regexp.MustCompile(`(?i)\b(policía|police|investigación\s+policial)\b`)},
}

var geographyPatterns = []struct {
	geo     string
	pattern *regexp.Regexp
}{
	{"USA", regexp.MustCompile(`(?i)\b(USA|United\s+States|Estados\s+Unidos|EE\.UU\.)`)},
	{"México", regexp.MustCompile(`(?i)\bM[eé]xico\b`)},
	{"Colombia", regexp.MustCompile(`(?i)\bColombia\b`)},
	{"España", regexp.MustCompile(`(?i)\b(España|Spain)\b`)},
}

var documentTypePatterns = []struct {
	docType string
	pattern *regexp.Regexp
}{
	{"Investigación oficial", regexp.MustCompile(`(?i)\b(investigación|investigation|report|informe)\b`)},
	{"Manual", regexp.MustCompile(`(?i)\b(manual|guide|guía|handbook)\b`)},
	{"Paper académico", regexp.MustCompile(`(?i)\b(paper|artículo|article|study|estudio|research)\b`)},
	{"Sentencia judicial", regexp.MustCompile(`(?i)\b(sentencia|sentence|judicial)\b`)},
	{"Estudio de caso", regexp.MustCompile(`(?i)\b(caso|case\s+study|estudio\s+de\s+caso)\b`)},
	// Forensic technical material is treated as a manual.
	{"Manual", regexp.MustCompile(`(?i)\b(forense|forensic|criminalística|balística|ballistic)\b`)},
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

var highReliabilityAuthorities = map[string]bool{
	"FBI": true, "DOJ": true, "UNODC": true, "judicial": true,
}

var highReliabilityTypes = map[string]bool{
	"Manual": true, "Paper académico": true, "Investigación oficial": true,
	"Sentencia judicial": true, "Estudio de caso": true,
}

var mediumReliabilityAuthorities = map[string]bool{
	"académico": true, "policial": true,
}

// Extract tags the document text, merging results into a copy of base.
// Existing keys in base are never overwritten: caller-supplied metadata wins.
func (e *Extractor) Extract(text string, base map[string]string) map[string]string {
	metadata := make(map[string]string, len(base)+6)
	for k, v := range base {
		metadata[k] = v
	}

	set := func(key, value string) {
		if value == "" {
			return
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	// Filename hints count alongside body text, as sources often encode the
	// authority in the file name. Separators are replaced with spaces so the
	// word-boundary patterns can see tokens like FBI in FBI_case_notes.txt.
	filename := strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(metadata["filename"])
	combined := text + " " + filename

	set(MetaCrimeType, firstCrimeType(combined))

	authority := firstAuthority(combined)
	set(MetaDocumentAuthority, authority)

	docType := firstDocumentType(combined)
	set(MetaDocumentType, docType)

	set(MetaGeography, firstGeography(combined))
	set(MetaYear, latestYear(text))
	set(MetaSourceReliability, e.reliability(metadata[MetaDocumentAuthority], metadata[MetaDocumentType]))

	return metadata
}

// reliability maps authority and document type to a trust tier.
func (e *Extractor) reliability(authority, docType string) string {
	if highReliabilityAuthorities[authority] {
		return ReliabilityHigh
	}
	if highReliabilityTypes[docType] {
		return ReliabilityHigh
	}
	if mediumReliabilityAuthorities[authority] {
		return ReliabilityMedium
	}
	return e.DefaultReliability
}

func firstCrimeType(text string) string {
	for _, p := range crimePatterns {
		if p.pattern.MatchString(text) {
			return p.crimeType
		}
	}
	return ""
}

func firstAuthority(text string) string {
	for _, p := range authorityPatterns {
		if p.pattern.MatchString(text) {
			return p.authority
		}
	}
	return ""
}

func firstGeography(text string) string {
	for _, p := range geographyPatterns {
		if p.pattern.MatchString(text) {
			return p.geo
		}
	}
	return ""
}

func firstDocumentType(text string) string {
	for _, p := range documentTypePatterns {
		if p.pattern.MatchString(text) {
			return p.docType
		}
	}
	return ""
}

// latestYear returns the most recent plausible year mentioned in the text.
func latestYear(text string) string {
	matches := yearPattern.FindAllString(text, -1)
	best := 0
	for _, m := range matches {
		y, err := strconv.Atoi(strings.TrimSpace(m))
		if err != nil {
			continue
		}
		if y >= 1900 && y <= 2099 && y > best {
			best = y
		}
	}
	if best == 0 {
		return ""
	}
	return strconv.Itoa(best)
}
