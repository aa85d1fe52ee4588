// Package labels matches medications against BNF cautionary and advisory
// label reference data. Drug and formulation names are normalised through
// alias tables before formulations are scored against each other.
package labels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// LabelNumber identifies a BNF label. The reference files write it either as
// a JSON number or a string, both decode to the same value.
type LabelNumber string

func (n *LabelNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = LabelNumber(strings.TrimSpace(s))
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("label number must be a number or string: %w", err)
	}
	*n = LabelNumber(num.String())
	return nil
}

// DrugFormulation links one drug name and formulation to its labels
type DrugFormulation struct {
	Drug        string        `json:"drug"`
	Formulation string        `json:"formulation"`
	Labels      []LabelNumber `json:"labels"`
}

// DrugAlias maps alternative names onto a primary drug name
type DrugAlias struct {
	Primary string
	Aliases []string
}

// FormulationAlias places one formulation spelling in a route and category
type FormulationAlias struct {
	Alias    string
	Route    string
	Category string
}

// LoadState records which reference tables loaded successfully
type LoadState struct {
	Labels             bool `json:"labels"`
	DrugFormulations   bool `json:"drugFormulations"`
	DrugAliases        bool `json:"drugAliases"`
	FormulationAliases bool `json:"formulationAliases"`
}

// ReferenceData is an immutable snapshot of the label reference tables
type ReferenceData struct {
	Labels             map[LabelNumber]string
	Formulations       []DrugFormulation
	DrugAliases        []DrugAlias
	FormulationAliases []FormulationAlias
	State              LoadState

	aliasIndex map[string]int
}

// NewReferenceData indexes the formulation aliases. Tables may be nil.
func NewReferenceData(labels map[LabelNumber]string, formulations []DrugFormulation, drugAliases []DrugAlias, formAliases []FormulationAlias) *ReferenceData {
	if labels == nil {
		labels = map[LabelNumber]string{}
	}
	rd := &ReferenceData{
		Labels:             labels,
		Formulations:       formulations,
		DrugAliases:        drugAliases,
		FormulationAliases: formAliases,
		aliasIndex:         make(map[string]int, len(formAliases)),
	}
	for i, a := range formAliases {
		rd.aliasIndex[a.Alias] = i
	}
	return rd
}

// IsDataLoaded reports whether the label texts and drug formulations are available
func (rd *ReferenceData) IsDataLoaded() bool {
	return rd != nil && rd.State.Labels && rd.State.DrugFormulations
}

// ParseLabels decodes bnf_labels.json
func ParseLabels(raw []byte) (map[LabelNumber]string, error) {
	var doc struct {
		Labels []struct {
			Number LabelNumber `json:"label_number"`
			Text   string      `json:"text"`
		} `json:"cautionary_advisory_labels"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode BNF labels: %w", err)
	}

	labels := make(map[LabelNumber]string, len(doc.Labels))
	for _, l := range doc.Labels {
		labels[l.Number] = l.Text
	}
	return labels, nil
}

// ParseDrugFormulations decodes drug_formulations.json into one entry per
// drug name and formulation. Items without names are skipped.
func ParseDrugFormulations(raw []byte) ([]DrugFormulation, error) {
	var items []struct {
		Name        json.RawMessage `json:"name"`
		Formulation json.RawMessage `json:"formulation"`
		Labels      []LabelNumber   `json:"label_number"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode drug formulations: %w", err)
	}

	var out []DrugFormulation
	for _, item := range items {
		var names []string
		if json.Unmarshal(item.Name, &names) != nil || len(names) == 0 {
			continue
		}

		forms := decodeFormulations(item.Formulation)
		labels := item.Labels
		if labels == nil {
			labels = []LabelNumber{}
		}

		for _, name := range names {
			for _, form := range forms {
				out = append(out, DrugFormulation{
					Drug:        strings.ToLower(name),
					Formulation: form,
					Labels:      labels,
				})
			}
		}
	}
	return out, nil
}

// decodeFormulations accepts a string, a list of strings or null; null and
// missing entries become ""
func decodeFormulations(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var list []*string
		if json.Unmarshal(raw, &list) == nil {
			forms := make([]string, len(list))
			for i, f := range list {
				if f != nil {
					forms[i] = *f
				}
			}
			return forms
		}
	}

	var single string
	if json.Unmarshal(raw, &single) == nil {
		return []string{single}
	}
	return []string{""}
}

// ParseDrugAliases decodes drug_aliases.json, keeping document order.
// Values that are not lists are ignored.
func ParseDrugAliases(raw []byte) ([]DrugAlias, error) {
	fields, err := decodeOrderedObject(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode drug aliases: %w", err)
	}

	aliases := make([]DrugAlias, 0, len(fields))
	for _, f := range fields {
		var list []string
		if json.Unmarshal(f.Value, &list) != nil {
			continue
		}
		aliases = append(aliases, DrugAlias{Primary: f.Key, Aliases: list})
	}
	return aliases, nil
}

// ParseFormulationAliases decodes formulation_aliases.json. Each route holds
// categories that are either alias lists or objects of subcategory lists;
// a subcategory alias gets the category "<category>_<subcategory>". An alias
// listed twice keeps its first position and takes the last route and category.
func ParseFormulationAliases(raw []byte) ([]FormulationAlias, error) {
	var doc struct {
		Formulations json.RawMessage `json:"formulations"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode formulation aliases: %w", err)
	}
	if doc.Formulations == nil {
		return nil, fmt.Errorf("failed to decode formulation aliases: missing formulations object")
	}

	routes, err := decodeOrderedObject(doc.Formulations)
	if err != nil {
		return nil, fmt.Errorf("failed to decode formulation routes: %w", err)
	}

	var out []FormulationAlias
	index := map[string]int{}
	add := func(alias, route, category string) {
		alias = foldName(alias)
		if i, ok := index[alias]; ok {
			out[i].Route = route
			out[i].Category = category
			return
		}
		index[alias] = len(out)
		out = append(out, FormulationAlias{Alias: alias, Route: route, Category: category})
	}

	for _, route := range routes {
		categories, err := decodeOrderedObject(route.Value)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", route.Key, err)
		}

		for _, category := range categories {
			var list []string
			if json.Unmarshal(category.Value, &list) == nil {
				for _, alias := range list {
					add(alias, route.Key, category.Key)
				}
				continue
			}

			subcategories, err := decodeOrderedObject(category.Value)
			if err != nil {
				return nil, fmt.Errorf("route %q category %q: %w", route.Key, category.Key, err)
			}
			for _, sub := range subcategories {
				var subList []string
				if json.Unmarshal(sub.Value, &subList) != nil {
					continue
				}
				for _, alias := range subList {
					add(alias, route.Key, category.Key+"_"+sub.Key)
				}
			}
		}
	}
	return out, nil
}
