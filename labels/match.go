package labels

import (
	"strings"
)

// Match is the outcome of comparing two names. Higher scores are better.
type Match struct {
	Matched bool `json:"matched"`
	Score   int  `json:"score"`
}

var noMatch = Match{}

// MatchFormulation scores a medication's formulation against a reference
// formulation. Tablet categories never cross-match: "tablet" must not
// pick up the labels of "chewable tablet".
func (rd *ReferenceData) MatchFormulation(medForm, entryForm string) Match {
	medForm = foldName(medForm)
	entryForm = foldName(entryForm)
	if medForm == "" || entryForm == "" {
		return noMatch
	}

	if medForm == entryForm {
		return Match{Matched: true, Score: runeLen(entryForm) * 2}
	}

	med := rd.NormalizeFormulation(medForm)
	entry := rd.NormalizeFormulation(entryForm)

	if med.Category != "" && med.Category == entry.Category {
		return Match{Matched: true, Score: max(runeLen(med.Normalized), runeLen(entry.Normalized))}
	}

	if (medForm == "tablet" && entryForm == "oral tablet") || (medForm == "oral tablet" && entryForm == "tablet") {
		return Match{Matched: true, Score: 5}
	}

	if strings.Contains(med.Category, "tablet") && strings.Contains(entry.Category, "tablet") {
		// Categories differ here, the equal case matched above
		return noMatch
	}

	if !strings.Contains(medForm, "tablet") && !strings.Contains(entryForm, "tablet") {
		if strings.Contains(medForm, entryForm) {
			return Match{Matched: true, Score: runeLen(entryForm)}
		}
		if strings.Contains(entryForm, medForm) {
			return Match{Matched: true, Score: runeLen(medForm)}
		}
	}

	return noMatch
}

// MatchDrugName scores a medication name against a reference drug name.
// Combination products written "a/b" match part by part in any order.
func MatchDrugName(medName, entryDrug string) Match {
	medName = strings.ToLower(medName)
	entryDrug = strings.ToLower(entryDrug)
	entryScore := Match{Matched: true, Score: runeLen(entryDrug)}

	if medName == entryDrug {
		return entryScore
	}

	medSlash := strings.Contains(medName, "/")
	entrySlash := strings.Contains(entryDrug, "/")

	if medSlash && entrySlash {
		entryParts := splitParts(entryDrug)
		all := true
		for _, mp := range splitParts(medName) {
			if !anyPartOverlaps(entryParts, mp) {
				all = false
				break
			}
		}
		if all {
			return entryScore
		}
	}

	if medSlash && anyPartOverlaps(splitParts(medName), entryDrug) {
		return entryScore
	}

	if entrySlash {
		entryParts := splitParts(entryDrug)
		if anyPartOverlaps(entryParts, medName) {
			longest := 0
			for _, p := range entryParts {
				longest = max(longest, runeLen(p))
			}
			return Match{Matched: true, Score: longest}
		}
	}

	if containsWord(medName, entryDrug) || containsWord(entryDrug, medName) {
		return entryScore
	}

	if strings.Contains(medName, entryDrug) || strings.Contains(entryDrug, medName) {
		return entryScore
	}

	return noMatch
}

func splitParts(name string) []string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// anyPartOverlaps reports whether a part equals or contains s, or is contained in it
func anyPartOverlaps(parts []string, s string) bool {
	for _, p := range parts {
		if p == s || strings.Contains(p, s) || strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// containsWord reports whether word appears in s delimited by spaces or the string ends
func containsWord(s, word string) bool {
	return strings.Contains(s, " "+word+" ") ||
		strings.HasPrefix(s, word+" ") ||
		strings.HasSuffix(s, " "+word)
}
