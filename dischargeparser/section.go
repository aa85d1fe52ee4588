package dischargeparser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/giygas/marchart-api/dischargeparser/entities"
)

// SectionStart marks the beginning of the discharge medication list
const SectionStart = "Medications Prescribed on Discharge"

// SectionEnds are the headings that can follow the medication list. The
// earliest one found after the start closes the section.
var SectionEnds = []string{
	"Dose Changes:",
	"DOSE CHANGES:",
	"Medications Started in Hospital Comment:",
	"Medications Stopped in Hospital Comment:",
	"Take Home Medications Comment:",
	"Treatment recommendation (For GP):",
	"Information for the Community Pharmacy:",
	"TTO Completed by Ward Pharmacist?:",
	"Medications Authorised by::",
}

// letterSpace is the whitespace found in exported letters, including
// non-breaking spaces and byte order marks
const letterSpace = `\s\p{Zs}\x{2028}\x{2029}\x{FEFF}`

var indentedLineRe = regexp.MustCompile(`^[` + letterSpace + `]+[^` + letterSpace + `]`)

func isLetterSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// trimLetterSpace trims like strings.TrimSpace and also drops byte order marks
func trimLetterSpace(s string) string {
	return strings.TrimFunc(s, isLetterSpace)
}

// LocateSection returns the trimmed discharge medication section of a letter
// and whether the start heading was found at all.
func LocateSection(text string) (string, bool) {
	start := strings.Index(text, SectionStart)
	if start == -1 {
		return "", false
	}

	end := len(text)
	for _, trigger := range SectionEnds {
		if idx := strings.Index(text[start:], trigger); idx != -1 && start+idx < end {
			end = start + idx
		}
	}

	begin := start + len(SectionStart)
	if end < begin {
		return "", true
	}
	return strings.TrimSpace(text[begin:end]), true
}

// SegmentEntries splits a section into entries. A non-indented line opens an
// entry, indented lines attach to it and a blank line closes it. Indented
// lines seen while no entry is open are carried to the next entry emitted.
func SegmentEntries(section string) []entities.Entry {
	var entries []entities.Entry
	current := ""
	var indented []string

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSuffix(line, "\r")
		blank := trimLetterSpace(line) == ""

		if !blank && indentedLineRe.MatchString(line) {
			indented = append(indented, line)
			continue
		}

		if current != "" {
			entries = append(entries, entities.Entry{Line: current, IndentedLines: indented})
			indented = nil
		}
		if blank {
			current = ""
		} else {
			current = line
		}
	}

	if current != "" {
		entries = append(entries, entities.Entry{Line: current, IndentedLines: indented})
	}
	return entries
}
