package analyses

import (
	"fmt"
	"strings"
)

// Keyword weights for the document sanity check. Terms a real policy wording
// repeats (policy, insured, hospital) weigh more than generic ones.
var insuranceKeywords = map[string]int{
	"policy":          3,
	"insured":         3,
	"insurer":         2,
	"insurance":       3,
	"premium":         2,
	"hospital":        2,
	"hospitalization": 2,
	"hospitalisation": 2,
	"claim":           2,
	"coverage":        2,
	"cover":           1,
	"sum":             1,
	"waiting":         2,
	"exclusion":       2,
	"deductible":      2,
	"co-payment":      2,
	"copayment":       2,
	"irdai":           3,
	"treatment":       1,
	"illness":         1,
	"disease":         1,
	"benefit":         1,
	"renewal":         1,
	"nominee":         1,
	"proposer":        2,
}

const (
	// minDistinctKeywords is the floor on distinct keyword families hit.
	minDistinctKeywords = 4
	// minKeywordScorePer10k is the weighted-hit density floor per 10k chars.
	minKeywordScorePer10k = 8.0
)

// ValidateDocument checks that text is long enough and reads like an
// insurance policy. It returns ErrDocumentTooShort or ErrNotAPolicyDocument;
// neither path touches the LLM.
func ValidateDocument(text string, minChars int) error {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minChars {
		return fmt.Errorf("%w: %d chars, need %d", ErrDocumentTooShort, len(trimmed), minChars)
	}

	distinct, score := keywordDensity(trimmed)
	per10k := score * 10000.0 / float64(len(trimmed))
	if distinct < minDistinctKeywords || per10k < minKeywordScorePer10k {
		return fmt.Errorf("%w: distinct=%d density=%.1f", ErrNotAPolicyDocument, distinct, per10k)
	}
	return nil
}

// keywordDensity returns the number of distinct keywords hit and the
// frequency-weighted score over the whole text.
func keywordDensity(text string) (distinct int, score float64) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	counts := make(map[string]int)
	for _, w := range words {
		if _, ok := insuranceKeywords[w]; ok {
			counts[w]++
		}
	}

	for kw, n := range counts {
		distinct++
		weight := insuranceKeywords[kw]
		// Cap per-keyword contribution so one repeated term cannot carry
		// an otherwise unrelated document.
		if n > 20 {
			n = 20
		}
		score += float64(weight * n)
	}
	return distinct, score
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-':
		return true
	}
	return false
}
