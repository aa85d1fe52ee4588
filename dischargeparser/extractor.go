// Package dischargeparser extracts structured medication records from the
// free-text "Medications Prescribed on Discharge" section of hospital
// discharge letters. Extraction is best-effort pattern matching: entries it
// cannot read are skipped, it never fails.
package dischargeparser

import (
	"time"

	"github.com/giygas/marchart-api/dischargeparser/entities"
	"github.com/giygas/marchart-api/interfaces"
	"github.com/giygas/marchart-api/logging"
	"github.com/giygas/marchart-api/metrics"
)

// Result is the outcome of one extraction
type Result struct {
	Medications  []entities.Medication
	SectionFound bool
	Entries      int
	Skipped      int
}

// Extract returns the medications found in a letter, in letter order
func Extract(text string) []entities.Medication {
	return ExtractResult(text).Medications
}

// ExtractResult runs the extraction and reports how many entries were skipped
func ExtractResult(text string) Result {
	res := Result{Medications: []entities.Medication{}}

	section, found := LocateSection(text)
	res.SectionFound = found
	if !found {
		return res
	}

	entries := SegmentEntries(section)
	res.Entries = len(entries)
	for _, entry := range entries {
		med, ok := ParseEntry(entry)
		if !ok {
			res.Skipped++
			continue
		}
		res.Medications = append(res.Medications, med)
	}
	return res
}

// Compile-time check to ensure Parser implements LetterParser interface
var _ interfaces.LetterParser = (*Parser)(nil)

// Parser wraps Extract with logging and metrics
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseLetter implements the LetterParser interface
func (p *Parser) ParseLetter(text string) []entities.Medication {
	start := time.Now()
	res := ExtractResult(text)

	switch {
	case !res.SectionFound:
		metrics.LettersProcessedTotal.WithLabelValues("no_section").Inc()
		logging.Info("No discharge medication section found in letter", "letter_bytes", len(text))
		return res.Medications
	case len(res.Medications) == 0:
		metrics.LettersProcessedTotal.WithLabelValues("empty").Inc()
	default:
		metrics.LettersProcessedTotal.WithLabelValues("extracted").Inc()
	}

	metrics.MedicationsExtractedTotal.Add(float64(len(res.Medications)))
	metrics.EntriesSkippedTotal.Add(float64(res.Skipped))

	// Counts only, letter content is patient data
	logging.Info("Extracted medications from discharge letter",
		"entries", res.Entries,
		"medications", len(res.Medications),
		"skipped", res.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res.Medications
}
