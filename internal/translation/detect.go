// Package translation provides machine translation of Spanish incident text
// into English, with an ID-keyed pass-through cache and a lightweight
// language-detection heuristic.
package translation

import "strings"

// spanishFragments are common Spanish function words and fragments. A single
// substring match classifies the text as Spanish. The heuristic is tuned for
// short, noisy rider reports, including bare keyword lists, so precision is
// traded for recall.
var spanishFragments = []string{
	" el ", " la ", " los ", " las ", " una ",
	" que ", " de ", " del ", " con ", " por ", " para ",
	" está ", " hay ", " muy ", " pero ",
	"ción", "avería", "retraso", "demora",
	"autobús", "parada", "estación", "línea",
	"no funciona", "sin servicio", "no hay",
}

// IsSpanish reports whether the text looks Spanish. The check is a cheap
// substring scan; one hit is enough.
func IsSpanish(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	// Pad so leading/trailing function words still match word-delimited fragments.
	padded := " " + strings.ToLower(text) + " "
	for _, fragment := range spanishFragments {
		if strings.Contains(padded, fragment) {
			return true
		}
	}
	return false
}
