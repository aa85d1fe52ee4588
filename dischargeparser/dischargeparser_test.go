package dischargeparser

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/giygas/marchart-api/dischargeparser/entities"
)

func TestLocateSection(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		want      string
		wantFound bool
	}{
		{
			name:      "no start trigger",
			text:      "Discharge summary\nNo medicines listed",
			want:      "",
			wantFound: false,
		},
		{
			name:      "runs to end of text",
			text:      "Summary\nMedications Prescribed on Discharge\n\nAspirin [75mg tablets], 75mg once daily\n",
			want:      "Aspirin [75mg tablets], 75mg once daily",
			wantFound: true,
		},
		{
			name: "earliest end trigger wins",
			text: "Medications Prescribed on Discharge\nA [1mg tablets], 1mg daily\n" +
				"Take Home Medications Comment: none\nDose Changes:\nStopped aspirin",
			want:      "A [1mg tablets], 1mg daily",
			wantFound: true,
		},
		{
			name:      "end trigger before the start is ignored",
			text:      "Dose Changes: none\nMedications Prescribed on Discharge\nB, 2mg daily",
			want:      "B, 2mg daily",
			wantFound: true,
		},
		{
			name:      "authorised by trigger",
			text:      "Medications Prescribed on Discharge\nC, 1 daily\nMedications Authorised by:: Dr X",
			want:      "C, 1 daily",
			wantFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := LocateSection(tt.text)
			if found != tt.wantFound {
				t.Errorf("found = %v, want %v", found, tt.wantFound)
			}
			if got != tt.want {
				t.Errorf("section = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSegmentEntries(t *testing.T) {
	section := "Amlodipine [5mg tablets], 5mg once daily\r\n" +
		"    Existing Med\n" +
		"\n" +
		"    orphan line\n" +
		"Furosemide [40mg tablets], 40mg once daily\n" +
		"   \n" +
		"Omeprazole [20mg capsules], 20mg once daily"

	entries := SegmentEntries(section)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}

	if entries[0].Line != "Amlodipine [5mg tablets], 5mg once daily" {
		t.Errorf("carriage return not stripped: %q", entries[0].Line)
	}
	if len(entries[0].IndentedLines) != 1 || entries[0].IndentedLines[0] != "    Existing Med" {
		t.Errorf("unexpected indented lines for first entry: %q", entries[0].IndentedLines)
	}

	// Indented lines after a blank line carry over to the next entry
	if len(entries[1].IndentedLines) != 1 || entries[1].IndentedLines[0] != "    orphan line" {
		t.Errorf("orphan indented line not carried over: %q", entries[1].IndentedLines)
	}
	if len(entries[2].IndentedLines) != 0 {
		t.Errorf("expected no indented lines for last entry, got %q", entries[2].IndentedLines)
	}
}

func TestSegmentEntriesNonBreakingIndent(t *testing.T) {
	section := "Amlodipine [5mg tablets], 5mg once daily\n" +
		"\u00a0\u00a0\u00a0Existing Med\n" +
		"\ufeff\u00a0\n" +
		"Ramipril [5mg capsules], 5mg once daily"

	entries := SegmentEntries(section)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %q", len(entries), entries)
	}
	if len(entries[0].IndentedLines) != 1 {
		t.Fatalf("non-breaking indent not attached: %q", entries[0].IndentedLines)
	}

	med, ok := ParseEntry(entries[0])
	if !ok {
		t.Fatal("entry was skipped")
	}
	if !med.ShouldPreselect {
		t.Error("expected preselect from non-breaking indented line")
	}
}

func TestParseEntrySkipsUnreadableLines(t *testing.T) {
	for _, line := range []string{"Allergies reviewed", "No changes made"} {
		if _, ok := ParseEntry(entities.Entry{Line: line}); ok {
			t.Errorf("expected %q to be skipped", line)
		}
	}
}

type medExpect struct {
	name         string
	dosage       string
	instructions string
	strength     *float64
	volume       float64
	volumeUnit   *string
	strengthUnit *string
	form         *string
	minDose      *float64
	maxDose      *float64
	doseUnit     *string
	sprayCount   *float64
	frequency    string
	timing       string
	withFood     string
	condition    string
	preselect    bool
	prn          bool
	taper        bool
	omitMon      bool
	someDays     bool
	excluded     bool
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		label string
		entry entities.Entry
		want  medExpect
	}{
		{
			label: "bracketed tablet with mass dose",
			entry: entities.Entry{Line: "Amlodipine [5mg tablets], 10mg once daily in the morning"},
			want: medExpect{
				name:         "Amlodipine [5mg tablets]",
				dosage:       "5mg tablets",
				instructions: "10mg once daily in the morning",
				strength:     floatp(5), volume: 1, strengthUnit: strp("mg"),
				form:    strp("tablet"),
				minDose: floatp(2), maxDose: floatp(2), doseUnit: strp("mg"),
				frequency: "once daily",
				timing:    "morning",
			},
		},
		{
			label: "comma separated entry",
			entry: entities.Entry{Line: "Furosemide 40mg tablets, 40mg, once a day in the morning"},
			want: medExpect{
				name:         "Furosemide 40mg tablets",
				dosage:       "Furosemide 40mg tablets",
				instructions: "40mg, once a day in the morning",
				strength:     floatp(40), volume: 1, strengthUnit: strp("mg"),
				form:    strp("tablet"),
				minDose: floatp(1), maxDose: floatp(1), doseUnit: strp("mg"),
				frequency: "once a day",
				timing:    "morning",
			},
		},
		{
			label: "tablet count when required",
			entry: entities.Entry{Line: "Codeine [30mg tablets], 1 tablet four times a day when required for pain."},
			want: medExpect{
				name:         "Codeine [30mg tablets]",
				dosage:       "30mg tablets",
				instructions: "1 tablet four times a day when required for pain.",
				strength:     floatp(30), volume: 1, strengthUnit: strp("mg"),
				form:    strp("tablet"),
				minDose: floatp(1), maxDose: floatp(1), doseUnit: strp("tab"),
				frequency: "four times a day",
				condition: "pain",
				prn:       true,
			},
		},
		{
			label: "half tablet at night",
			entry: entities.Entry{Line: "Warfarin [1mg tablets], 0.5 tablet at night"},
			want: medExpect{
				name:         "Warfarin [1mg tablets]",
				dosage:       "1mg tablets",
				instructions: "0.5 tablet at night",
				strength:     floatp(1), volume: 1, strengthUnit: strp("mg"),
				form:    strp("tablet"),
				minDose: floatp(1), maxDose: floatp(1), doseUnit: strp("half tab"),
				timing: "night",
			},
		},
		{
			label: "liquid strength per volume",
			entry: entities.Entry{Line: "Lactulose [3.35g/5ml oral solution], 10ml twice a day after food"},
			want: medExpect{
				name:         "Lactulose [3.35g/5ml oral solution]",
				dosage:       "3.35g/5ml oral solution",
				instructions: "10ml twice a day after food",
				strength:     floatp(3.35), volume: 5, volumeUnit: strp("ml"), strengthUnit: strp("g"),
				form:    strp("oral solution"),
				minDose: floatp(10), maxDose: floatp(10), doseUnit: strp("ml"),
				frequency: "twice a day",
				withFood:  "with food",
			},
		},
		{
			label: "combination strength is summed",
			entry: entities.Entry{Line: "Co-codamol [30mg/500mg tablets], 2 tablets four times a day"},
			want: medExpect{
				name:         "Co-codamol [30mg/500mg tablets]",
				dosage:       "30mg/500mg tablets",
				instructions: "2 tablets four times a day",
				strength:     floatp(530), volume: 1, volumeUnit: strp("mg"), strengthUnit: strp("mg"),
				form:    strp("tablet"),
				minDose: floatp(2), maxDose: floatp(2), doseUnit: strp("tab"),
				frequency: "four times a day",
			},
		},
		{
			label: "spray range",
			entry: entities.Entry{Line: "GTN [400micrograms/dose spray], 1-2 sprays when required for chest pain"},
			want: medExpect{
				name:         "GTN [400micrograms/dose spray]",
				dosage:       "400micrograms/dose spray",
				instructions: "1-2 sprays when required for chest pain",
				strength:     floatp(400), volume: 1, strengthUnit: strp("micrograms"),
				form:    strp("spray"),
				minDose: floatp(1), maxDose: floatp(2), doseUnit: strp("sprays"),
				sprayCount: floatp(2),
				condition:  "chest pain",
				prn:        true,
			},
		},
		{
			label: "see taper clears the dose",
			entry: entities.Entry{Line: "Prednisolone [5mg tablets], see taper as required"},
			want: medExpect{
				name:         "Prednisolone [5mg tablets]",
				dosage:       "5mg tablets",
				instructions: "see taper as required",
				strength:     floatp(5), volume: 1, strengthUnit: strp("mg"),
				form:  strp("tablet"),
				taper: true,
			},
		},
		{
			label: "scopoderm override",
			entry: entities.Entry{Line: "Scopoderm TTS [1.5mg patch], apply one patch every 72 hours"},
			want: medExpect{
				name:         "Scopoderm TTS [1.5mg patch]",
				dosage:       "1.5mg patch",
				instructions: "apply one patch every 72 hours",
				strength:     floatp(1), volume: 1, strengthUnit: strp("mg"),
				form:    strp("patch"),
				minDose: floatp(1), maxDose: floatp(1), doseUnit: strp("hours"),
				someDays: true,
			},
		},
		{
			label: "form abbreviation and keyword frequency",
			entry: entities.Entry{Line: "Movicol [sach], 1 sachet daily, omit Mon"},
			want: medExpect{
				name:         "Movicol [sach]",
				dosage:       "sach",
				instructions: "1 sachet daily, omit Mon",
				volume:       1,
				form:         strp("sachet"),
				minDose:      floatp(1), maxDose: floatp(1), doseUnit: strp("sachet"),
				frequency: "once daily",
				omitMon:   true,
			},
		},
		{
			label: "steroid card is excluded and preselected",
			entry: entities.Entry{
				Line:          "Stationery [Steroid Emergency Card], 1 card to carry",
				IndentedLines: []string{"   GP to Review"},
			},
			want: medExpect{
				name:         "Stationery [Steroid Emergency Card]",
				dosage:       "Steroid Emergency Card",
				instructions: "1 card to carry",
				volume:       1,
				minDose:      floatp(1), maxDose: floatp(1), doseUnit: strp("card"),
				preselect: true,
				excluded:  true,
			},
		},
		{
			label: "timing before food",
			entry: entities.Entry{Line: "Lansoprazole [30mg capsules], 30mg in the morning and evening before food"},
			want: medExpect{
				name:         "Lansoprazole [30mg capsules]",
				dosage:       "30mg capsules",
				instructions: "30mg in the morning and evening before food",
				strength:     floatp(30), volume: 1, strengthUnit: strp("mg"),
				form:    strp("capsule"),
				minDose: floatp(1), maxDose: floatp(1), doseUnit: strp("mg"),
				timing:   "morning evening",
				withFood: "without food",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParseEntry(tt.entry)
			if !ok {
				t.Fatalf("entry %q was skipped", tt.entry.Line)
			}
			assertMedication(t, got, tt.want)
		})
	}
}

func TestParseEntryDoseFallbacks(t *testing.T) {
	tests := []struct {
		label    string
		line     string
		strength *float64
		dose     float64
		unit     string
	}{
		{
			label:    "zero dose falls through to tablet count",
			line:     "Levothyroxine [25microgram tablets], 0 mg, 2 tabs daily",
			strength: floatp(25),
			dose:     2,
			unit:     "tab",
		},
		{
			label:    "zero dose falls through to first number word",
			line:     "Salbutamol [100micrograms/dose inhaler], 0 , 2 puffs when required",
			strength: floatp(100),
			dose:     2,
			unit:     "puffs",
		},
		{
			label:    "thousands separators in strength and dose",
			line:     "Colecalciferol [3,000units/ml oral drops], 1,000 units once daily",
			strength: floatp(3000),
			dose:     1000,
			unit:     "units",
		},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParseEntry(entities.Entry{Line: tt.line})
			if !ok {
				t.Fatalf("entry %q was skipped", tt.line)
			}
			if got.Strength == nil || *got.Strength != *tt.strength {
				t.Errorf("strength = %v, want %v", got.Strength, *tt.strength)
			}
			if got.MinDose == nil || got.MaxDose == nil || *got.MinDose != tt.dose || *got.MaxDose != tt.dose {
				t.Errorf("dose = %v-%v, want %v", got.MinDose, got.MaxDose, tt.dose)
			}
			if got.DoseUnit == nil || *got.DoseUnit != tt.unit {
				t.Errorf("dose unit = %v, want %q", got.DoseUnit, tt.unit)
			}
		})
	}
}

func TestParseEntryTaperTable(t *testing.T) {
	entry := entities.Entry{
		Line: "Prednisolone [5mg tablets], reducing course, taper as below",
		IndentedLines: []string{
			"    Dose Frequency Days Hours From Through",
			"    40mg ONCE a day 3",
			"    30mg ONCE a day 3",
			"    New Med",
		},
	}

	got, ok := ParseEntry(entry)
	if !ok {
		t.Fatal("entry was skipped")
	}
	if !got.IsTaper {
		t.Error("expected taper")
	}
	if got.IsPrn {
		t.Error("a taper is never PRN")
	}
	if !got.ShouldPreselect {
		t.Error("expected preselect from New Med line")
	}
	if got.TaperInstructions == nil {
		t.Fatal("expected taper instructions")
	}
	if !strings.HasPrefix(*got.TaperInstructions, "40mg ONCE a day 3") ||
		!strings.Contains(*got.TaperInstructions, "30mg ONCE a day 3") {
		t.Errorf("unexpected taper table: %q", *got.TaperInstructions)
	}
}

func TestParseEntryPrescriberDetermined(t *testing.T) {
	got, ok := ParseEntry(entities.Entry{Line: "Insulin [100units/ml flexpen], prescriber determined, as required"})
	if !ok {
		t.Fatal("entry was skipped")
	}
	if !got.IsTaper || got.IsPrn {
		t.Errorf("expected taper without PRN, got taper=%v prn=%v", got.IsTaper, got.IsPrn)
	}
	if got.Form == nil || *got.Form != "flexpen" {
		t.Errorf("expected flexpen form, got %v", got.Form)
	}
}

func TestExtract(t *testing.T) {
	letter := "Patient: Test\n" +
		"Medications Prescribed on Discharge\n" +
		"Amlodipine [5mg tablets], 5mg once daily\n" +
		"    Existing Med\n" +
		"Free text without dosage\n" +
		"Paracetamol [500mg tablets], 1g four times a day when required for pain\n" +
		"Dose Changes:\n" +
		"Ramipril [5mg capsules], 5mg once daily\n"

	res := ExtractResult(letter)
	if !res.SectionFound {
		t.Fatal("expected section to be found")
	}
	if res.Entries != 3 || res.Skipped != 1 {
		t.Errorf("expected 3 entries with 1 skipped, got %d and %d", res.Entries, res.Skipped)
	}
	if len(res.Medications) != 2 {
		t.Fatalf("expected 2 medications, got %d", len(res.Medications))
	}
	if res.Medications[0].Name != "Amlodipine [5mg tablets]" || !res.Medications[0].ShouldPreselect {
		t.Errorf("unexpected first medication: %+v", res.Medications[0])
	}
	if res.Medications[1].Name != "Paracetamol [500mg tablets]" || !res.Medications[1].IsPrn {
		t.Errorf("unexpected second medication: %+v", res.Medications[1])
	}
}

func TestExtractNoSection(t *testing.T) {
	meds := Extract("A letter with no medication list")
	if meds == nil || len(meds) != 0 {
		t.Errorf("expected an empty, non-nil list, got %v", meds)
	}
}

func TestParserParseLetter(t *testing.T) {
	p := NewParser()
	meds := p.ParseLetter("Medications Prescribed on Discharge\nAspirin [75mg dispersible tablets], 75mg once daily")
	if len(meds) != 1 {
		t.Fatalf("expected 1 medication, got %d", len(meds))
	}
	if meds[0].FormValue() != "tablet" {
		t.Errorf("expected tablet, got %q", meds[0].FormValue())
	}
}

func TestReadLetter(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		limit   int64
		want    string
		wantErr error
	}{
		{"utf8 passthrough", "Café au lait", 100, "Café au lait", nil},
		{"windows-1252 decoded", "Caf\xe9 \x96 note", 100, "Café – note", nil},
		{"crlf normalised", "line one\r\nline two\rline three", 100, "line one\nline two\nline three", nil},
		{"bom stripped", "\xef\xbb\xbfMedications", 100, "Medications", nil},
		{"too large", strings.Repeat("x", 11), 10, "", ErrLetterTooLarge},
		{"exactly at limit", strings.Repeat("x", 10), 10, strings.Repeat("x", 10), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadLetter(strings.NewReader(tt.input), tt.limit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func assertMedication(t *testing.T, got entities.Medication, want medExpect) {
	t.Helper()

	if got.Name != want.name {
		t.Errorf("name = %q, want %q", got.Name, want.name)
	}
	if got.Dosage != want.dosage {
		t.Errorf("dosage = %q, want %q", got.Dosage, want.dosage)
	}
	if got.Instructions != want.instructions {
		t.Errorf("instructions = %q, want %q", got.Instructions, want.instructions)
	}
	checkFloat(t, "strength", got.Strength, want.strength)
	if got.StrengthVolume != want.volume {
		t.Errorf("strengthVolume = %v, want %v", got.StrengthVolume, want.volume)
	}
	checkString(t, "strengthVolumeUnit", got.StrengthVolumeUnit, want.volumeUnit)
	checkString(t, "strengthUnit", got.StrengthUnit, want.strengthUnit)
	checkString(t, "form", got.Form, want.form)
	checkFloat(t, "minDose", got.MinDose, want.minDose)
	checkFloat(t, "maxDose", got.MaxDose, want.maxDose)
	checkString(t, "doseUnit", got.DoseUnit, want.doseUnit)
	checkFloat(t, "sprayCount", got.SprayCount, want.sprayCount)

	if got.Frequency != want.frequency {
		t.Errorf("frequency = %q, want %q", got.Frequency, want.frequency)
	}
	if got.Timing != want.timing {
		t.Errorf("timing = %q, want %q", got.Timing, want.timing)
	}
	if got.WithFood != want.withFood {
		t.Errorf("withFood = %q, want %q", got.WithFood, want.withFood)
	}
	if got.Condition != want.condition {
		t.Errorf("condition = %q, want %q", got.Condition, want.condition)
	}
	if got.ShouldPreselect != want.preselect {
		t.Errorf("shouldPreselect = %v, want %v", got.ShouldPreselect, want.preselect)
	}
	if got.IsPrn != want.prn {
		t.Errorf("isPrn = %v, want %v", got.IsPrn, want.prn)
	}
	if got.IsTaper != want.taper {
		t.Errorf("isTaper = %v, want %v", got.IsTaper, want.taper)
	}
	if got.IsOmitMon != want.omitMon {
		t.Errorf("isOmitMon = %v, want %v", got.IsOmitMon, want.omitMon)
	}
	if got.IsSomeDays != want.someDays {
		t.Errorf("isSomeDays = %v, want %v", got.IsSomeDays, want.someDays)
	}
	if got.IsExcludedFromCharts != want.excluded {
		t.Errorf("isExcludedFromCharts = %v, want %v", got.IsExcludedFromCharts, want.excluded)
	}
}

func checkFloat(t *testing.T, field string, got, want *float64) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", field, deref(got), deref(want))
	case math.Abs(*got-*want) > 1e-9:
		t.Errorf("%s = %v, want %v", field, *got, *want)
	}
}

func checkString(t *testing.T, field string, got, want *string) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", field, got, want)
	case *got != *want:
		t.Errorf("%s = %q, want %q", field, *got, *want)
	}
}

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatp(v float64) *float64 { return &v }
func strp(v string) *string     { return &v }
