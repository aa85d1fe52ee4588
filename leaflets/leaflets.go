package leaflets

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/giygas/marchart-api/logging"
)

var (
	ErrUnknownKind    = errors.New("unknown leaflet kind")
	ErrUnknownFile    = errors.New("unknown leaflet file")
	ErrSearchTooShort = errors.New("search term must be at least 2 characters long")
	ErrEmptyName      = errors.New("no medication name provided")
)

// Kind selects the written leaflet or the pictorial guide
type Kind string

const (
	KindLeaflet   Kind = "leaflet"
	KindPictorial Kind = "pictorial"
)

// ParseKind accepts the singular or plural kind name
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "leaflet", "leaflets":
		return KindLeaflet, nil
	case "pictorial", "pictorials":
		return KindPictorial, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Folder is the directory holding PDFs of this kind
func (k Kind) Folder() string {
	return string(k) + "s"
}

func (f Files) of(kind Kind) string {
	if kind == KindLeaflet {
		return f.Leaflet
	}
	return f.Pictorial
}

// CatalogEntry is a catalog medication with the PDFs found for it
type CatalogEntry struct {
	Name                  string `json:"name"`
	Formulation           string `json:"formulation"`
	PDFAvailable          bool   `json:"pdfAvailable"`
	PDFLeafletAvailable   bool   `json:"pdfLeafletAvailable"`
	PDFPictorialAvailable bool   `json:"pdfPictorialAvailable"`
	PDFLeafletFilename    string `json:"pdfLeafletFilename,omitempty"`
	PDFPictorialFilename  string `json:"pdfPictorialFilename,omitempty"`
}

// Details describes how a free-text medication name is printed and which PDFs it gets
type Details struct {
	FormattedName         string `json:"formattedName"`
	PDFAvailable          bool   `json:"pdfAvailable"`
	PDFLeafletAvailable   bool   `json:"pdfLeafletAvailable"`
	PDFPictorialAvailable bool   `json:"pdfPictorialAvailable"`
	PDFLeafletFilename    string `json:"pdfLeafletFilename,omitempty"`
	PDFPictorialFilename  string `json:"pdfPictorialFilename,omitempty"`
}

// NormalizeForm maps a form abbreviation or synonym to its base form
func NormalizeForm(term string) string {
	term = strings.ToLower(term)
	for _, entry := range formAliasTable {
		for _, alias := range entry.aliases {
			if term == alias {
				return entry.form
			}
		}
	}
	return term
}

// formMentioned reports whether the name mentions the formulation, its base
// form, a plural or the three letter abbreviation
func formMentioned(name, form string) bool {
	base := NormalizeForm(form)
	short := base
	if len(short) > 3 {
		short = short[:3]
	}
	for _, candidate := range []string{form, base, base + "s", short, short + "s"} {
		if strings.Contains(name, candidate) {
			return true
		}
	}
	return false
}

// FindPDF returns the PDF of the given kind for a medication name. A keyword
// whose formulation is also mentioned wins outright; otherwise the first
// matching keyword gives its first formulation.
func FindPDF(name string, kind Kind) (string, bool) {
	name = strings.ToLower(name)

	fallback := ""
	for _, entry := range pdfMappings {
		if !strings.Contains(name, entry.keyword) {
			continue
		}

		for _, f := range entry.forms {
			if formMentioned(name, f.form) ||
				(f.form == "tablet" && strings.Contains(name, "tab")) ||
				(f.form == "capsule" && strings.Contains(name, "cap")) {
				return f.files.of(kind), true
			}
		}
		if fallback == "" {
			fallback = entry.forms[0].files.of(kind)
		}
	}

	return fallback, fallback != ""
}

// FormattedName returns the printed name for a medication, or the name
// unchanged when it is not in the catalog
func FormattedName(name string) string {
	lower := strings.ToLower(name)

	for _, entry := range formattedNames {
		if !strings.Contains(lower, entry.keyword) {
			continue
		}
		for _, f := range entry.forms {
			if formMentioned(lower, f.form) {
				return f.name
			}
		}
		return entry.forms[0].name
	}
	return name
}

// All lists the catalog with PDF availability
func All() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(catalog))
	for _, item := range catalog {
		combined := item.name + " " + item.formulation
		leaflet, hasLeaflet := FindPDF(combined, KindLeaflet)
		pictorial, hasPictorial := FindPDF(combined, KindPictorial)

		if !hasLeaflet && !hasPictorial {
			leaflet, hasLeaflet = FindPDF(item.name, KindLeaflet)
			pictorial, hasPictorial = FindPDF(item.name, KindPictorial)
		}

		logging.Debug("Catalog PDF lookup", "medication", combined, "leaflet", leaflet, "pictorial", pictorial)

		entries = append(entries, CatalogEntry{
			Name:                  item.name,
			Formulation:           item.formulation,
			PDFAvailable:          hasLeaflet || hasPictorial,
			PDFLeafletAvailable:   hasLeaflet,
			PDFPictorialAvailable: hasPictorial,
			PDFLeafletFilename:    leaflet,
			PDFPictorialFilename:  pictorial,
		})
	}
	return entries
}

// Search filters the catalog by name or formulation, ignoring case
func Search(term string) ([]CatalogEntry, error) {
	term = strings.ToLower(term)
	if utf8.RuneCountInString(term) < 2 {
		return nil, ErrSearchTooShort
	}

	matches := []CatalogEntry{}
	for _, entry := range All() {
		if strings.Contains(strings.ToLower(entry.Name), term) ||
			strings.Contains(strings.ToLower(entry.Formulation), term) {
			matches = append(matches, entry)
		}
	}
	return matches, nil
}

// GetDetails resolves the printed name and PDFs for a medication name
func GetDetails(name string) (Details, error) {
	if name == "" {
		return Details{}, ErrEmptyName
	}

	leaflet, hasLeaflet := FindPDF(name, KindLeaflet)
	pictorial, hasPictorial := FindPDF(name, KindPictorial)

	return Details{
		FormattedName:         FormattedName(name),
		PDFAvailable:          hasLeaflet || hasPictorial,
		PDFLeafletAvailable:   hasLeaflet,
		PDFPictorialAvailable: hasPictorial,
		PDFLeafletFilename:    leaflet,
		PDFPictorialFilename:  pictorial,
	}, nil
}

// Library resolves catalog PDFs under a directory laid out as
// <dir>/leaflets and <dir>/pictorials
type Library struct {
	dir   string
	known map[Kind]map[string]bool
}

func NewLibrary(dir string) *Library {
	known := map[Kind]map[string]bool{
		KindLeaflet:   {},
		KindPictorial: {},
	}
	for _, entry := range pdfMappings {
		for _, f := range entry.forms {
			known[KindLeaflet][f.files.Leaflet] = true
			known[KindPictorial][f.files.Pictorial] = true
		}
	}
	return &Library{dir: dir, known: known}
}

// Path returns the file path of a catalog PDF. Only file names from the
// catalog are resolved.
func (l *Library) Path(kind Kind, filename string) (string, error) {
	files, ok := l.known[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if !files[filename] {
		return "", fmt.Errorf("%w: %s", ErrUnknownFile, filename)
	}
	return filepath.Join(l.dir, kind.Folder(), filename), nil
}
