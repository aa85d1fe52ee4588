package labels

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/giygas/marchart-api/logging"
)

const (
	LabelsFile             = "bnf_labels.json"
	DrugFormulationsFile   = "drug_formulations.json"
	DrugAliasesFile        = "drug_aliases.json"
	FormulationAliasesFile = "formulation_aliases.json"
)

// ReferenceFiles lists the files read from the reference directory
var ReferenceFiles = []string{LabelsFile, DrugFormulationsFile, DrugAliasesFile, FormulationAliasesFile}

// Loader reads the label reference tables from a directory
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Dir returns the reference directory
func (l *Loader) Dir() string {
	return l.dir
}

// LoadReferenceData reads every reference table. A table that fails to load
// is left empty and marked in the load state; the returned data is always
// usable. The error joins the failures of the required tables, the drug
// alias table is optional.
func (l *Loader) LoadReferenceData() (*ReferenceData, error) {
	var state LoadState
	var errs []error

	labels, err := loadTable(l.dir, LabelsFile, ParseLabels)
	if err != nil {
		errs = append(errs, err)
	} else {
		state.Labels = true
	}

	formulations, err := loadTable(l.dir, DrugFormulationsFile, ParseDrugFormulations)
	if err != nil {
		errs = append(errs, err)
	} else {
		state.DrugFormulations = true
	}

	drugAliases, err := loadTable(l.dir, DrugAliasesFile, ParseDrugAliases)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Drug aliases file not found, using drug names as written", "file", DrugAliasesFile)
		} else {
			logging.Warn("Drug aliases could not be loaded", "error", err)
		}
	} else {
		state.DrugAliases = true
	}

	formAliases, err := loadTable(l.dir, FormulationAliasesFile, ParseFormulationAliases)
	if err != nil {
		errs = append(errs, err)
	} else {
		state.FormulationAliases = true
	}

	rd := NewReferenceData(labels, formulations, drugAliases, formAliases)
	rd.State = state

	logging.Info("Reference data loaded",
		"labels", len(rd.Labels),
		"drug_formulations", len(rd.Formulations),
		"drug_aliases", len(rd.DrugAliases),
		"formulation_aliases", len(rd.FormulationAliases),
		"complete", len(errs) == 0,
	)

	return rd, errors.Join(errs...)
}

func loadTable[T any](dir, name string, parse func([]byte) (T, error)) (T, error) {
	var zero T

	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return zero, fmt.Errorf("reading %s: %w", name, err)
	}

	table, err := parse(raw)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	return table, nil
}
