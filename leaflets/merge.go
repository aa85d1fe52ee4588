package leaflets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/giygas/marchart-api/logging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var ErrNoLeaflets = errors.New("no leaflets found for the given medications")

func init() {
	// pdfcpu would otherwise create a config directory under the user's home
	api.DisableConfigDir()
}

// MergeResult lists what went into a merged leaflet pack
type MergeResult struct {
	Files    []string
	NotFound []string
}

// Merge writes one PDF holding the leaflets of the given kind for every
// medication name, in the order given. Names without a leaflet, or whose
// leaflet is missing on disk, are reported in NotFound. A leaflet shared by
// several names is included once. ErrNoLeaflets is returned when nothing
// was found.
func (l *Library) Merge(w io.Writer, kind Kind, names []string) (MergeResult, error) {
	if _, ok := l.known[kind]; !ok {
		return MergeResult{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	result := MergeResult{Files: []string{}, NotFound: []string{}}
	seen := make(map[string]bool)
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for _, name := range names {
		filename, ok := FindPDF(name, kind)
		if !ok {
			result.NotFound = append(result.NotFound, name)
			continue
		}
		if seen[filename] {
			continue
		}

		f, err := os.Open(filepath.Join(l.dir, kind.Folder(), filename))
		if err != nil {
			logging.Warn("Catalog leaflet missing on disk", "file", filename, "error", err)
			result.NotFound = append(result.NotFound, name)
			continue
		}
		seen[filename] = true
		files = append(files, f)
		result.Files = append(result.Files, filename)
	}

	if len(files) == 0 {
		return result, ErrNoLeaflets
	}

	if len(files) == 1 {
		if _, err := io.Copy(w, files[0]); err != nil {
			return result, fmt.Errorf("failed to copy leaflet: %w", err)
		}
		return result, nil
	}

	readers := make([]io.ReadSeeker, len(files))
	for i, f := range files {
		readers[i] = f
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.MergeRaw(readers, w, false, conf); err != nil {
		return result, fmt.Errorf("failed to merge leaflets: %w", err)
	}

	logging.Debug("Merged leaflets", "kind", kind, "files", result.Files, "not_found", len(result.NotFound))
	return result, nil
}
