package scoring

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
)

// Normalize trims surrounding whitespace and case-folds s.
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Grade compares a given answer with the authoritative one. Blank answers are never correct.
func Grade(given, correct string) bool {
	g := Normalize(given)
	if g == "" {
		return false
	}
	return g == Normalize(correct)
}

// Percentage returns round(100 * correct / total), or 0 for an empty quiz.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
