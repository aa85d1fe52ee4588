package entities

// Medication is one medication recovered from a discharge letter.
// Nil pointer fields mean the value could not be found in the text.
type Medication struct {
	Name                 string   `json:"name"`
	Dosage               string   `json:"dosage"`
	Instructions         string   `json:"instructions"`
	Strength             *float64 `json:"strength"`
	StrengthVolume       float64  `json:"strengthVolume"`
	StrengthVolumeUnit   *string  `json:"strengthVolumeUnit"`
	StrengthUnit         *string  `json:"strengthUnit"`
	Form                 *string  `json:"form"`
	MinDose              *float64 `json:"minDose"`
	MaxDose              *float64 `json:"maxDose"`
	DoseUnit             *string  `json:"doseUnit"`
	SprayCount           *float64 `json:"sprayCount"`
	Frequency            string   `json:"frequency"`
	Timing               string   `json:"timing"`
	WithFood             string   `json:"withFood"`
	Condition            string   `json:"condition"`
	ShouldPreselect      bool     `json:"shouldPreselect"`
	IsPrn                bool     `json:"isPrn"`
	IsTaper              bool     `json:"isTaper"`
	TaperInstructions    *string  `json:"taperInstructions"`
	IsOmitMon            bool     `json:"isOmitMon"`
	IsSomeDays           bool     `json:"isSomeDays"`
	IsExcludedFromCharts bool     `json:"isExcludedFromCharts"`
}

// FormValue returns the form or "" when none was found
func (m Medication) FormValue() string {
	if m.Form == nil {
		return ""
	}
	return *m.Form
}
