package matching

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/bondcrm/notionsync/internal/model"
)

// Similarity thresholds.
const (
	MinTitleSimilarity = 0.70
	HighSimilarity     = 0.95
	MediumSimilarity   = 0.80
)

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases, trims, strips non-word characters and collapses
// whitespace.
func NormalizeTitle(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Similarity scores two titles in [0, 1]: identical 1.0, identical after
// normalization 0.95, containment 0.85, otherwise one minus the normalized
// edit distance.
func Similarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if strings.TrimSpace(a) == strings.TrimSpace(b) {
		return 1.0
	}
	if na == nb {
		return 0.95
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.85
	}
	longest := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	return 1 - float64(levenshtein.ComputeDistance(na, nb))/float64(longest)
}

// ConfidenceFor maps a similarity score onto a confidence band.
func ConfidenceFor(score float64) model.Confidence {
	switch {
	case score >= HighSimilarity:
		return model.ConfidenceHigh
	case score >= MediumSimilarity:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
