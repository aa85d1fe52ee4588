package labels

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizedForm is a formulation resolved through the alias table
type NormalizedForm struct {
	Normalized string `json:"normalized"`
	Category   string `json:"category"`
	Route      string `json:"route"`
}

// foldName lowercases, trims and strips accents so "Crème" matches "creme"
func foldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			// Transformers keep state, so each call builds its own chain
			stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
			if folded, _, err := transform.String(stripAccents, s); err == nil {
				return folded
			}
			break
		}
	}
	return s
}

// NormalizeDrugName maps a drug name to its primary name when it contains a
// known alias. The first primary in file order wins.
func (rd *ReferenceData) NormalizeDrugName(name string) string {
	name = foldName(name)
	if name == "" {
		return ""
	}

	for _, entry := range rd.DrugAliases {
		for _, alias := range entry.Aliases {
			if strings.Contains(name, foldName(alias)) {
				return strings.ToLower(entry.Primary)
			}
		}
	}
	return name
}

// NormalizeFormulation resolves a formulation to its alias, category and
// route: an exact alias first, then the longest alias whose words all appear
// in the formulation. Unknown formulations come back unchanged.
func (rd *ReferenceData) NormalizeFormulation(form string) NormalizedForm {
	form = foldName(form)
	if form == "" {
		return NormalizedForm{}
	}

	if i, ok := rd.aliasIndex[form]; ok {
		a := rd.FormulationAliases[i]
		return NormalizedForm{Normalized: form, Category: a.Category, Route: a.Route}
	}

	words := make(map[string]bool)
	for _, w := range strings.Fields(form) {
		words[w] = true
	}

	var best *FormulationAlias
	for i := range rd.FormulationAliases {
		a := &rd.FormulationAliases[i]
		if !allWordsIn(a.Alias, words) {
			continue
		}
		if best == nil || runeLen(a.Alias) > runeLen(best.Alias) {
			best = a
		}
	}

	if best == nil {
		return NormalizedForm{Normalized: form}
	}
	return NormalizedForm{Normalized: best.Alias, Category: best.Category, Route: best.Route}
}

func allWordsIn(alias string, words map[string]bool) bool {
	aliasWords := strings.Fields(alias)
	if len(aliasWords) == 0 {
		return false
	}
	for _, w := range aliasWords {
		if !words[w] {
			return false
		}
	}
	return true
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
