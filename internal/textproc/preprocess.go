// Package textproc provides text normalization, tokenization and TF-IDF
// weighting for incident summaries.
package textproc

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/transitops/patternmine/pkg/models"
)

// stopWords are dropped during tokenization. The incident stream mixes
// English and Spanish user text, so both sets are covered.
var stopWords = map[string]bool{
	// English
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "this": true, "that": true, "these": true,
	"those": true, "with": true, "from": true, "into": true, "about": true,
	"not": true, "but": true, "its": true, "which": true, "who": true,
	"what": true, "when": true, "where": true, "how": true, "why": true,
	// Spanish
	"que": true, "los": true, "las": true, "por": true, "con": true,
	"para": true, "una": true, "uno": true, "del": true, "est": true,
	"esta": true, "este": true, "pero": true, "como": true, "muy": true,
	"hay": true, "desde": true, "hasta": true, "porque": true,
}

// MinTokenLength is the minimum token length kept by Tokenize; shorter tokens
// carry almost no signal in short incident summaries.
const MinTokenLength = 3

// timeFormats are tried in order when parsing incident timestamps.
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeText lower-cases the text, strips non-word characters and
// collapses runs of whitespace into single spaces.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize normalizes the text and returns its tokens, dropping short tokens
// and stop words.
func Tokenize(text string) []string {
	fields := strings.Fields(NormalizeText(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < MinTokenLength || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// ComputeTF returns per-token frequency normalized by document length.
func ComputeTF(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	if len(tokens) == 0 {
		return tf
	}
	for _, t := range tokens {
		tf[t]++
	}
	n := float64(len(tokens))
	for t := range tf {
		tf[t] /= n
	}
	return tf
}

// ComputeIDF returns ln(N / documents_containing_token) over the whole batch.
func ComputeIDF(corpus [][]string) map[string]float64 {
	docFreq := make(map[string]float64)
	for _, doc := range corpus {
		seen := make(map[string]bool, len(doc))
		for _, t := range doc {
			if !seen[t] {
				seen[t] = true
				docFreq[t]++
			}
		}
	}
	n := float64(len(corpus))
	idf := make(map[string]float64, len(docFreq))
	for t, df := range docFreq {
		idf[t] = math.Log(n / df)
	}
	return idf
}

// ComputeTFIDF returns the elementwise product of the tokens' TF and the
// corpus IDF. Tokens missing from the IDF map get weight 0.
func ComputeTFIDF(tokens []string, idf map[string]float64) map[string]float64 {
	tfidf := ComputeTF(tokens)
	for t := range tfidf {
		tfidf[t] *= idf[t]
	}
	return tfidf
}

// ParseTime parses an incident timestamp, trying a fixed list of layouts.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeFormats {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", value)
}

// PreprocessIncident derives the normalized summary, token list and parsed
// timestamp for one incident. It returns an error when the timestamp cannot
// be parsed; callers decide whether to skip or abort.
func PreprocessIncident(inc models.Incident) (*models.NormalizedIncident, error) {
	ts, err := ParseTime(inc.Time)
	if err != nil {
		return nil, fmt.Errorf("incident %s: %w", inc.ID, err)
	}
	return &models.NormalizedIncident{
		Incident:          inc,
		ParsedTime:        ts,
		NormalizedSummary: NormalizeText(inc.Summary),
		Tokens:            Tokenize(inc.Summary),
	}, nil
}
