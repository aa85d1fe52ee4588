package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/giygas/marchart-api/labels"
)

func TestNewInputValidator(t *testing.T) {
	validator := NewInputValidator()

	if validator == nil {
		t.Fatal("NewInputValidator returned nil")
	}

	if _, ok := validator.(*InputValidatorImpl); !ok {
		t.Error("NewInputValidator should return *InputValidatorImpl")
	}
}

func TestValidateSearchTerm(t *testing.T) {
	validator := NewInputValidator()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple name", "paracetamol", false},
		{"two characters", "gt", false},
		{"combination product", "co-codamol 30/500", false},
		{"percent strength", "carbomer 0.2%", false},
		{"accented", "crème", false},
		{"empty", "", true},
		{"spaces only", "   ", true},
		{"one character", "a", true},
		{"too long", strings.Repeat("ab", 26), true},
		{"too many words", "a b c d e f g", true},
		{"script tag", "<script>alert(1)</script>", true},
		{"sql comment", "paracetamol--", true},
		{"path traversal", "../etc/passwd", true},
		{"command injection", "name; rm", true},
		{"invalid characters", "name<>", true},
		{"emoji", "pill 💊", true},
		{"excessive repetition", "aaaaaaaaaaaa", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateSearchTerm(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSearchTerm(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSearchTermErrorKinds(t *testing.T) {
	validator := NewInputValidator()

	if err := validator.ValidateSearchTerm(""); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if err := validator.ValidateSearchTerm("javascript:x"); !errors.Is(err, ErrDangerousInput) {
		t.Errorf("expected ErrDangerousInput, got %v", err)
	}
	if err := validator.ValidateSearchTerm("name#1"); !errors.Is(err, ErrInvalidCharacters) {
		t.Errorf("expected ErrInvalidCharacters, got %v", err)
	}
}

func TestValidateLetter(t *testing.T) {
	validator := NewInputValidator()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"letter", "Medications Prescribed on Discharge\nParacetamol", false},
		{"empty", "", true},
		{"whitespace", " \n\t ", true},
		{"invalid utf8", "abc\xff", true},
		{"null byte", "abc\x00def", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateLetter(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLetter error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMedicationNameAndFormulation(t *testing.T) {
	validator := NewInputValidator()

	if err := validator.ValidateMedicationName("Co-codamol [30/500mg] & more"); err != nil {
		t.Errorf("free text name should be accepted: %v", err)
	}
	if err := validator.ValidateMedicationName(""); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if err := validator.ValidateMedicationName(strings.Repeat("x", 201)); err == nil {
		t.Error("expected error for long name")
	}
	if err := validator.ValidateMedicationName("<script>x"); !errors.Is(err, ErrDangerousInput) {
		t.Errorf("expected ErrDangerousInput, got %v", err)
	}
	if err := validator.ValidateMedicationName("line\nbreak"); !errors.Is(err, ErrInvalidCharacters) {
		t.Errorf("expected ErrInvalidCharacters, got %v", err)
	}

	if err := validator.ValidateFormulation(""); err != nil {
		t.Errorf("empty formulation should be accepted: %v", err)
	}
	if err := validator.ValidateFormulation("modified-release tablet"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validator.ValidateFormulation(strings.Repeat("y", 101)); err == nil {
		t.Error("expected error for long formulation")
	}
}

func TestValidateLabelNumber(t *testing.T) {
	validator := NewInputValidator()

	tests := []struct {
		input    string
		expected labels.LabelNumber
		wantErr  bool
	}{
		{"21", "21", false},
		{"021", "21", false},
		{"1", "1", false},
		{"0", "", true},
		{"", "", true},
		{"-1", "", true},
		{"+5", "", true},
		{"1a", "", true},
		{"1234", "", true},
		{" 2", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := validator.ValidateLabelNumber(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateLabelNumber(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ValidateLabelNumber(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidateInstructionID(t *testing.T) {
	validator := NewInputValidator()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"uuid", "6ba7b811-9dad-11d1-80b4-00c04fd430c8", false},
		{"legacy md5 hex", "5d41402abc4b2a76b9719d911017c592", false},
		{"uppercase hex", "5D41402ABC4B2A76B9719D911017C592", true},
		{"uuid with braces", "{6ba7b811-9dad-11d1-80b4-00c04fd430c8}", true},
		{"urn uuid", "urn:uuid:6ba7b811-9dad-11d1-80b4-00c04fd430c8", true},
		{"empty", "", true},
		{"traversal", "../instructions.json", true},
		{"short", "abc123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateInstructionID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInstructionID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateLeafletFilename(t *testing.T) {
	validator := NewInputValidator()

	tests := []struct {
		input   string
		wantErr bool
	}{
		{"gtnsprayleaflet.pdf", false},
		{"trimbowpMDIleaflet.pdf", false},
		{"../secret.pdf", true},
		{"leaflet.PDF", true},
		{"leaflet.txt", true},
		{"dir/leaflet.pdf", true},
		{"", true},
		{strings.Repeat("a", 101) + ".pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := validator.ValidateLeafletFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLeafletFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestHasExcessiveRepetition(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"", false},
		{"aaaaaaaaaa", false},
		{"aaaaaaaaaaa", true},
		{"abababababababab", false},
		{"éééééééééééé", true},
	}

	for _, tt := range tests {
		if got := hasExcessiveRepetition(tt.input); got != tt.expected {
			t.Errorf("hasExcessiveRepetition(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
