// Package validation checks user input before it reaches the extractor, the
// label matcher or the stores.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/marchart-api/interfaces"
	"github.com/giygas/marchart-api/labels"
	"github.com/google/uuid"
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Search terms: letters in any script, digits, spaces and the punctuation drug names use
	searchTermRegex = regexp.MustCompile(`^[\p{L}0-9\s\-\.\+'/%]+$`)

	// Legacy instruction IDs are MD5 hex digests
	legacyIDRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)

	leafletFilenameRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]+\.pdf$`)

	// Dangerous patterns as strings, strings.Contains is faster than regex here
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:",
	}

	// Free text fields only reject markup, their content is otherwise arbitrary
	markupPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"<iframe", "<object", "<embed",
	}
)

var (
	ErrEmptyInput        = errors.New("input cannot be empty")
	ErrDangerousInput    = errors.New("input contains potentially dangerous content")
	ErrInvalidCharacters = errors.New("input contains invalid characters")
)

const (
	maxSearchTermLength = 50
	maxSearchWords      = 6
	maxNameLength       = 200
	maxFormLength       = 100
	maxLeafletFilename  = 100
)

// Compile-time check to ensure InputValidatorImpl implements InputValidator
var _ interfaces.InputValidator = (*InputValidatorImpl)(nil)

// InputValidatorImpl implements the interfaces.InputValidator interface
type InputValidatorImpl struct{}

// NewInputValidator creates a new input validator
func NewInputValidator() interfaces.InputValidator {
	return &InputValidatorImpl{}
}

// ValidateSearchTerm validates catalog search input
func (v *InputValidatorImpl) ValidateSearchTerm(input string) error {
	if strings.TrimSpace(input) == "" {
		return ErrEmptyInput
	}

	length := utf8.RuneCountInString(input)
	if length < 2 {
		return fmt.Errorf("input too short: minimum 2 characters")
	}
	if length > maxSearchTermLength {
		return fmt.Errorf("input too long: maximum %d characters", maxSearchTermLength)
	}

	// Many short words make substring search expensive
	if len(strings.Fields(input)) > maxSearchWords {
		return fmt.Errorf("search query too complex: maximum %d words allowed", maxSearchWords)
	}

	if containsAnyFold(input, dangerousPatterns) {
		return ErrDangerousInput
	}

	if !searchTermRegex.MatchString(input) {
		return fmt.Errorf("%w: only letters, numbers, spaces, hyphens, apostrophes, periods, slashes, plus and percent signs are allowed", ErrInvalidCharacters)
	}

	if hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateLetter validates discharge letter text. Size limits are applied
// while the letter is read.
func (v *InputValidatorImpl) ValidateLetter(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("letter text cannot be empty")
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("letter text is not valid UTF-8")
	}
	if strings.ContainsRune(text, 0) {
		return fmt.Errorf("%w: letter contains null bytes", ErrInvalidCharacters)
	}
	return nil
}

// ValidateMedicationName validates a medication name sent for label matching
func (v *InputValidatorImpl) ValidateMedicationName(input string) error {
	return validateFreeText(input, maxNameLength, true)
}

// ValidateFormulation validates a formulation. An empty formulation is allowed.
func (v *InputValidatorImpl) ValidateFormulation(input string) error {
	return validateFreeText(input, maxFormLength, false)
}

// ValidateLabelNumber validates a BNF label number and returns it without leading zeros
func (v *InputValidatorImpl) ValidateLabelNumber(input string) (labels.LabelNumber, error) {
	if input == "" {
		return "", ErrEmptyInput
	}
	if len(input) > 3 {
		return "", fmt.Errorf("label number should have at most 3 digits")
	}

	// strconv.Atoi rejects signs we do not want, check digits first
	for _, r := range input {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: only numeric characters are allowed", ErrInvalidCharacters)
		}
	}

	n, err := strconv.Atoi(input)
	if err != nil || n < 1 {
		return "", fmt.Errorf("label number must be a positive integer")
	}
	return labels.LabelNumber(strconv.Itoa(n)), nil
}

// ValidateInstructionID accepts UUIDs and the 32 character hex IDs of older exports
func (v *InputValidatorImpl) ValidateInstructionID(input string) error {
	if input == "" {
		return ErrEmptyInput
	}
	if legacyIDRegex.MatchString(input) {
		return nil
	}
	if len(input) != 36 {
		return fmt.Errorf("invalid instruction ID")
	}
	if _, err := uuid.Parse(input); err != nil {
		return fmt.Errorf("invalid instruction ID: %w", err)
	}
	return nil
}

// ValidateLeafletFilename only allows plain PDF file names
func (v *InputValidatorImpl) ValidateLeafletFilename(input string) error {
	if input == "" {
		return ErrEmptyInput
	}
	if len(input) > maxLeafletFilename {
		return fmt.Errorf("file name too long: maximum %d characters", maxLeafletFilename)
	}
	if !leafletFilenameRegex.MatchString(input) {
		return fmt.Errorf("%w: invalid leaflet file name", ErrInvalidCharacters)
	}
	return nil
}

func validateFreeText(input string, maxLength int, required bool) error {
	if strings.TrimSpace(input) == "" {
		if required {
			return ErrEmptyInput
		}
		return nil
	}
	if utf8.RuneCountInString(input) > maxLength {
		return fmt.Errorf("input too long: maximum %d characters", maxLength)
	}
	for _, r := range input {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control characters are not allowed", ErrInvalidCharacters)
		}
	}
	if containsAnyFold(input, markupPatterns) {
		return ErrDangerousInput
	}
	return nil
}

func containsAnyFold(input string, patterns []string) bool {
	lower := strings.ToLower(input)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// hasExcessiveRepetition checks for the same character repeated more than 10 times in a row
func hasExcessiveRepetition(input string) bool {
	run := 1
	var prev rune = -1
	for _, r := range input {
		if r == prev {
			run++
			if run > 10 {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}
