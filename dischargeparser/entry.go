package dischargeparser

import (
	"strconv"
	"strings"

	"github.com/giygas/marchart-api/dischargeparser/entities"
)

// entryState carries one entry through the extraction steps
type entryState struct {
	entry entities.Entry
	med   *entities.Medication
	// lower-cased instructions, used by every keyword rule
	lowerInstructions string
}

type entryStep struct {
	name  string
	apply func(s *entryState)
}

// entrySteps run in order on every entry. Later steps may overwrite what
// earlier ones found, e.g. the named overrides replace the dose.
var entrySteps = []entryStep{
	{"strength", parseStrength},
	{"form", parseForm},
	{"dose", parseDose},
	{"spray count", parseSprayCount},
	{"taper", parseTaper},
	{"named overrides", applyNamedOverrides},
	{"frequency", parseFrequency},
	{"timing", parseTiming},
	{"food", parseFood},
	{"condition", parseCondition},
	{"flags", parseFlags},
}

// ParseEntry turns one segmented entry into a medication record. It reports
// false when the line has neither a bracketed dosage nor a comma.
func ParseEntry(entry entities.Entry) (entities.Medication, bool) {
	name, dosage, instructions, ok := splitHeader(entry.Line)
	if !ok {
		return entities.Medication{}, false
	}

	med := entities.Medication{
		Name:         name,
		Dosage:       dosage,
		Instructions: instructions,
	}
	state := &entryState{
		entry:             entry,
		med:               &med,
		lowerInstructions: strings.ToLower(instructions),
	}
	for _, step := range entrySteps {
		step.apply(state)
	}
	return med, true
}

// splitHeader separates name, dosage and instructions
func splitHeader(line string) (name, dosage, instructions string, ok bool) {
	if m := bracketEntryRe.FindStringSubmatch(line); m != nil {
		name = strings.TrimSpace(m[1])
		if m[2] != "" {
			name += " " + m[2]
		}
		dosage = m[3]
		return name + " [" + dosage + "]", dosage, m[4], true
	}

	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return "", "", "", false
	}
	name = strings.TrimSpace(parts[0])
	return name, name, strings.TrimSpace(strings.Join(parts[1:], ",")), true
}

func parseStrength(s *entryState) {
	s.med.StrengthVolume = 1

	m := strengthRe.FindStringSubmatch(s.med.Dosage)
	if m == nil {
		return
	}

	first := parseNumber(m[1])
	unit := strings.ToLower(m[2])
	s.med.StrengthUnit = &unit

	if m[3] == "" {
		s.med.Strength = &first
		return
	}

	second := parseNumber(m[3])
	if m[4] != "" {
		volumeUnit := strings.ToLower(m[4])
		s.med.StrengthVolumeUnit = &volumeUnit
	}

	if s.med.StrengthVolumeUnit != nil && *s.med.StrengthVolumeUnit == "ml" {
		s.med.Strength = &first
		s.med.StrengthVolume = second
		return
	}

	// Combination products such as 5mg/10mg chart the summed strength
	total := first + second
	s.med.Strength = &total
}

func parseForm(s *entryState) {
	match := formRe.FindString(s.med.Dosage)
	if match == "" {
		return
	}
	form := strings.ToLower(match)
	if canonical, ok := formCanonical[form]; ok {
		form = canonical
	}
	s.med.Form = &form
}

// doseSteps resolve the dose range in order
var doseSteps = []entryStep{
	{"range", doseFromRange},
	{"see taper", doseClearedForTaper},
	{"first number", doseFromFirstNumber},
	{"quantity", doseFromQuantity},
	{"per unit", doseInUnits},
}

func parseDose(s *entryState) {
	for _, step := range doseSteps {
		step.apply(s)
	}
}

func setDose(med *entities.Medication, minDose, maxDose *float64, unit *string) {
	med.MinDose = minDose
	med.MaxDose = maxDose
	med.DoseUnit = unit
}

func doseFromRange(s *entryState) {
	m := doseRangeRe.FindStringSubmatch(s.med.Instructions)
	if m == nil {
		setDose(s.med, nil, nil, nil)
		return
	}

	minDose := parseNumber(m[1])
	maxDose := minDose
	if m[2] != "" {
		maxDose = parseNumber(m[2])
	}
	unit := "units"
	if m[3] != "" {
		unit = strings.ToLower(m[3])
	}
	setDose(s.med, &minDose, &maxDose, &unit)
}

func doseClearedForTaper(s *entryState) {
	if strings.Contains(s.lowerInstructions, "see taper") {
		setDose(s.med, nil, nil, nil)
	}
}

// doseFromFirstNumber retries with "number word" when no usable range was found
func doseFromFirstNumber(s *entryState) {
	if nonZero(s.med.MinDose) && nonZero(s.med.MaxDose) {
		return
	}

	m := doseFallbackRe.FindStringSubmatch(s.med.Instructions)
	if m == nil {
		setDose(s.med, nil, nil, nil)
		return
	}
	dose := parseNumber(m[1])
	maxDose := dose
	unit := strings.ToLower(m[2])
	setDose(s.med, &dose, &maxDose, &unit)
}

// doseFromQuantity counts tablets or capsules written out in the instructions
func doseFromQuantity(s *entryState) {
	m := doseQuantityRe.FindStringSubmatch(s.med.Instructions)
	if m == nil {
		return
	}

	quantity := parseNumber(m[1])
	unit := strings.ToLower(m[2])
	if quantity == 0.5 {
		unit = "half " + unit
		quantity = 1
	}
	maxDose := quantity
	setDose(s.med, &quantity, &maxDose, &unit)
}

// doseInUnits converts a mass dose of a solid form into a count of units
func doseInUnits(s *entryState) {
	med := s.med
	if !nonZero(med.MinDose) || !nonZero(med.Strength) {
		return
	}
	if med.Form == nil || !solidForms[*med.Form] {
		return
	}
	if med.DoseUnit != nil && countUnits[*med.DoseUnit] {
		return
	}

	minDose := *med.MinDose / *med.Strength
	med.MinDose = &minDose
	if med.MaxDose != nil {
		maxDose := *med.MaxDose / *med.Strength
		med.MaxDose = &maxDose
	}
}

func parseSprayCount(s *entryState) {
	if m := sprayCountRe.FindStringSubmatch(s.med.Instructions); m != nil {
		count := parseNumber(m[1])
		s.med.SprayCount = &count
	}
}

// parseTaper flags reducing regimens and lifts the taper table printed under the entry
func parseTaper(s *entryState) {
	s.med.IsTaper = strings.Contains(s.lowerInstructions, "taper") ||
		strings.Contains(strings.ToLower(s.entry.Line), "prescriber determined")
	if !s.med.IsTaper {
		return
	}

	block := strings.Join(append([]string{s.entry.Line}, s.entry.IndentedLines...), "\n")
	if m := taperTableRe.FindStringSubmatch(block); m != nil {
		table := strings.TrimSpace(m[1])
		s.med.TaperInstructions = &table
	}
}

type namedOverride struct {
	contains string
	apply    func(s *entryState)
}

// namedOverrides replace parsed values for products whose labelling the
// generic rules get wrong. Matched against the lower-cased name.
var namedOverrides = []namedOverride{
	{contains: "scopoderm tts", apply: scopodermPatch},
}

func applyNamedOverrides(s *entryState) {
	lowerName := strings.ToLower(s.med.Name)
	for _, o := range namedOverrides {
		if strings.Contains(lowerName, o.contains) {
			o.apply(s)
			return
		}
	}
}

// scopodermPatch charts hyoscine patches as 1mg patches
func scopodermPatch(s *entryState) {
	dose := 1.0
	if m := milligramRe.FindStringSubmatch(s.med.Instructions); m != nil {
		dose = parseNumber(m[1])
	}
	maxDose := dose
	s.med.MinDose = &dose
	s.med.MaxDose = &maxDose

	strength := 1.0
	unit := "mg"
	form := "patch"
	s.med.Strength = &strength
	s.med.StrengthUnit = &unit
	s.med.Form = &form
}

func parseFrequency(s *entryState) {
	if m := frequencyRe.FindString(s.med.Instructions); m != "" {
		s.med.Frequency = m
		return
	}
	s.med.Frequency = firstKeywordRule(frequencyFallbacks, s.lowerInstructions)
}

func parseTiming(s *entryState) {
	s.med.Timing = strings.Join(allKeywordRules(timingRules, s.lowerInstructions), " ")
}

func parseFood(s *entryState) {
	s.med.WithFood = firstKeywordRule(foodRules, s.lowerInstructions)
}

func parseCondition(s *entryState) {
	if m := conditionRe.FindStringSubmatch(s.med.Instructions); m != nil {
		s.med.Condition = strings.TrimSpace(m[1])
	}
}

func parseFlags(s *entryState) {
	med := s.med
	med.ShouldPreselect = hasPreselectLine(s.entry.IndentedLines)
	med.IsPrn = containsAny(s.lowerInstructions, prnKeywords) && !med.IsTaper
	med.IsOmitMon = strings.Contains(s.lowerInstructions, "omit mon")
	med.IsSomeDays = containsAny(s.lowerInstructions, someDaysKeywords)
	med.IsExcludedFromCharts = strings.Contains(med.Name, steroidCardStationery)
}

// hasPreselectLine reports whether the pharmacist marked the entry as one to chart
func hasPreselectLine(lines []string) bool {
	for _, line := range lines {
		trimmed := trimLetterSpace(line)
		for _, prefix := range preselectPrefixes {
			if strings.HasPrefix(trimmed, prefix) {
				return true
			}
		}
	}
	return false
}

// parseNumber reads a number written with optional thousands separators
func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func nonZero(v *float64) bool {
	return v != nil && *v != 0
}
