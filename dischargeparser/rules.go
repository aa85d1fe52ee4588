package dischargeparser

import (
	"regexp"
	"strings"
)

// Every cascade below is ordered: the first rule that matches wins, so the
// order of each table is part of the extraction behaviour.

var (
	// name [dosage], instructions
	bracketEntryRe = regexp.MustCompile(`^([^\[]+)\s*(?:(\d+(?:\.\d+)?%))?\s*\[(.*?)\],\s+(.*)`)

	strengthRe = regexp.MustCompile(`(?i)(\d+(?:,\d+)?(?:\.\d+)?)\s*(\w+)?(?:\s*/\s*(\d+(?:,\d+)?(?:\.\d+)?)\s*(\w+)?)?`)

	formRe = regexp.MustCompile(`(?i)(?:tablet|sprays|spray|tabs|caplet|oral\s+solution|oral\s+son\.|capsule|tab|caps|cap|inhalator|patch|capsule/tablet|inhaler|flexpen|cartridge|sach|sachet|cream|crm|ointment|Scalp Application|sudocrem|lotion|gel|liquid gel|nebule|nebules|nebs|amps|solution|syrup|suspension|oral solution|oral soln\.|liquid|elixir|linctus|s/f oral soln\.|oral powder|drop|drops|lozenge|gum)`)

	doseRangeRe    = regexp.MustCompile(`(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*(?:-\s*(\d+(?:,\d+)*(?:\.\d+)?))?\s*(\w+)?`)
	doseFallbackRe = regexp.MustCompile(`(?i)(\d+(?:,\d+)*(?:\.\d+)?)\s*(\w+)`)
	doseQuantityRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s+(tab|tablet|capsule|cap)`)
	sprayCountRe   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:spray|sprays)`)
	taperTableRe   = regexp.MustCompile(`Dose\s+Frequency\s+Days\s+Hours\s+From\s+Through\s*\n((?:.*\n?)*)`)
	milligramRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mg`)
	conditionRe    = regexp.MustCompile(`(?i)for\s+([\w\s]+?)(?:\.|,|$)`)
	frequencyRe    = regexp.MustCompile(`(?i)(once|twice|three times|four times|1 time|2 times|3 times|4 times)(?:\s+a\s+day|\s+daily|\s+every\s+day|\s+per\s+day)?`)
)

// formCanonical folds abbreviated dosage forms onto the chart vocabulary
var formCanonical = map[string]string{
	"sach":              "sachet",
	"tab":               "tablet",
	"cap":               "capsule",
	"oral powder":       "sachet",
	"drops":             "drop",
	"scalp application": "cream",
}

// solidForms are counted in units, so a mass dose is divided by the strength
var solidForms = map[string]bool{
	"tablet":  true,
	"capsule": true,
	"tab":     true,
	"cap":     true,
}

// countUnits are dose units that already count tablets or capsules
var countUnits = map[string]bool{
	"tab":          true,
	"tablet":       true,
	"capsule":      true,
	"cap":          true,
	"half tab":     true,
	"half tablet":  true,
	"half capsule": true,
	"half cap":     true,
}

// keywordRule yields value when the lower-cased text contains any keyword
type keywordRule struct {
	keywords []string
	value    string
}

func (r keywordRule) matches(lower string) bool {
	return containsAny(lower, r.keywords)
}

// frequencyFallbacks apply when frequencyRe finds nothing
var frequencyFallbacks = []keywordRule{
	{keywords: []string{"daily"}, value: "once daily"},
	{keywords: []string{"twice a day"}, value: "twice a day"},
	{keywords: []string{"three times a day"}, value: "three times a day"},
	{keywords: []string{"four times a day"}, value: "four times a day"},
}

// timingRules all apply; matches are joined in table order
var timingRules = []keywordRule{
	{keywords: []string{"morning"}, value: "morning"},
	{keywords: []string{"afternoon"}, value: "afternoon"},
	{keywords: []string{"evening"}, value: "evening"},
	{keywords: []string{"night", "bedtime"}, value: "night"},
}

var foodRules = []keywordRule{
	{keywords: []string{"with food", "after food", "after meals"}, value: "with food"},
	{keywords: []string{"without food", "before food", "on empty stomach"}, value: "without food"},
}

var (
	preselectPrefixes = []string{"Existing Med", "New Med", "Hospital Supply", "GP to Review"}
	prnKeywords       = []string{"prn", "when required", "as required"}
	someDaysKeywords  = []string{
		"once a week",
		"once week",
		"twice a week",
		"3 x week",
		"6 days of week",
		"every 72 hours",
		"alternate",
		"month",
		"every 3 days",
		"once only one",
	}
)

const steroidCardStationery = "Stationery [Steroid Emergency Card]"

// firstKeywordRule returns the value of the first matching rule, or ""
func firstKeywordRule(rules []keywordRule, lower string) string {
	for _, r := range rules {
		if r.matches(lower) {
			return r.value
		}
	}
	return ""
}

// allKeywordRules returns the values of every matching rule, in order
func allKeywordRules(rules []keywordRule, lower string) []string {
	var values []string
	for _, r := range rules {
		if r.matches(lower) {
			values = append(values, r.value)
		}
	}
	return values
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
