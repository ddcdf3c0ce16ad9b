package setor

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical sector codes with task ownership.
const (
	RH          = "RH"
	Medicina    = "MEDICINA"
	Treinamento = "TREINAMENTO"
	Logistica   = "LOGISTICA"
)

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds diacritics, strips non-alphanumeric runes and upper-cases.
// "Logística - Depósito" becomes "LOGISTICADEPOSITO".
func Normalize(raw string) string {
	folded, _, err := transform.String(foldAccents, raw)
	if err != nil {
		folded = raw
	}
	var sb strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(folded)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Resolve maps a free-text responsible string to a sector code. First match
// wins; unclassified input passes through as its own normalized code so that
// free-text departments still route somewhere.
func Resolve(raw string) string {
	n := Normalize(raw)
	switch {
	case strings.Contains(n, "TREIN"):
		return Treinamento
	case strings.Contains(n, "MEDIC"):
		return Medicina
	case strings.Contains(n, "RECURSOS"), strings.Contains(n, "HUMANOS"), strings.Contains(n, "RH"):
		return RH
	}
	return n
}
