package labels

import (
	"fmt"
	"strings"
)

// Query is the part of a medication the label lookup needs
type Query struct {
	Name string `json:"name"`
	Form string `json:"form"`
}

// Labeler attaches BNF labels to medications. Label attachment ships
// disabled and then returns no labels, matching what the charts print today.
type Labeler struct {
	data    *ReferenceData
	enabled bool
}

func NewLabeler(data *ReferenceData, enabled bool) *Labeler {
	if data == nil {
		data = NewReferenceData(nil, nil, nil, nil)
	}
	return &Labeler{data: data, enabled: enabled}
}

// Enabled reports whether label attachment is switched on
func (l *Labeler) Enabled() bool {
	return l.enabled
}

// LabelsFor returns the labels of the best matching drug formulation. Both
// the drug name and the formulation must match; an entry without a
// formulation applies to every form of the drug.
func (l *Labeler) LabelsFor(q Query) []LabelNumber {
	if !l.enabled || !l.data.IsDataLoaded() {
		return []LabelNumber{}
	}

	drug := l.data.NormalizeDrugName(drugNamePart(q.Name))
	if drug == "" {
		return []LabelNumber{}
	}

	bestScore := -1
	var best []LabelNumber
	for _, entry := range l.data.Formulations {
		nameMatch := MatchDrugName(drug, entry.Drug)
		if !nameMatch.Matched {
			continue
		}

		formScore := 0
		if entry.Formulation != "" {
			formMatch := l.data.MatchFormulation(q.Form, entry.Formulation)
			if !formMatch.Matched {
				continue
			}
			formScore = formMatch.Score
		}

		if score := nameMatch.Score + formScore; score > bestScore {
			bestScore = score
			best = entry.Labels
		}
	}

	if best == nil {
		return []LabelNumber{}
	}
	return append([]LabelNumber(nil), best...)
}

// LabelTexts resolves label numbers to their text. Unknown numbers are kept
// as a "not found" line so a missing label is visible on the chart.
func (l *Labeler) LabelTexts(numbers []LabelNumber) []string {
	texts := []string{}
	if len(numbers) == 0 || len(l.data.Labels) == 0 {
		return texts
	}

	for _, n := range numbers {
		if text, ok := l.data.Labels[n]; ok && text != "" {
			texts = append(texts, text)
			continue
		}
		texts = append(texts, fmt.Sprintf("Label %s not found", n))
	}
	return texts
}

// LabelText returns the text of a single label
func (l *Labeler) LabelText(n LabelNumber) (string, bool) {
	text, ok := l.data.Labels[n]
	return text, ok
}

// drugNamePart drops the bracketed dosage the extractor appends to names
func drugNamePart(name string) string {
	if i := strings.Index(name, "["); i > 0 {
		return strings.TrimSpace(name[:i])
	}
	return name
}
