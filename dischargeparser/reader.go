package dischargeparser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrLetterTooLarge is returned when a letter exceeds the configured limit
var ErrLetterTooLarge = errors.New("letter exceeds maximum size")

// ReadLetter reads an uploaded discharge letter. Letters exported from older
// ward systems are Windows-1252, so anything that is not valid UTF-8 is
// decoded from that code page. Line endings are normalised to \n.
func ReadLetter(r io.Reader, limit int64) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("failed to read letter: %w", err)
	}
	if int64(len(raw)) > limit {
		return "", fmt.Errorf("%w (%d bytes)", ErrLetterTooLarge, limit)
	}

	return DecodeLetter(raw)
}

// DecodeLetter converts raw letter bytes to normalised UTF-8 text
func DecodeLetter(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	text := string(raw)
	if !utf8.Valid(raw) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("failed to decode letter: %w", err)
		}
		text = string(decoded)
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
