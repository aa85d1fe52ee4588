// Package instructions stores the patient instruction pages linked from
// printed charts, with JSON export and import for moving them between
// installations.
package instructions

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/giygas/marchart-api/logging"
	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("instruction not found")
	ErrMissingInstructions = errors.New("missing required field: instructions")
	ErrInvalidFormat       = errors.New("invalid data format")
)

const backupTimeFormat = "20060102_150405"

// namespace for name based instruction IDs
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("marchart:instructions"))

// Instruction is one instruction page. Text and Instructions carry the same
// content; older exports only have Text.
type Instruction struct {
	Text           string `json:"text"`
	Instructions   string `json:"instructions"`
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Timing         string `json:"timing"`
	Route          string `json:"route"`
}

func (i Instruction) normalized() Instruction {
	if i.Instructions == "" {
		i.Instructions = i.Text
	}
	if i.Text == "" {
		i.Text = i.Instructions
	}
	return i
}

// Summary is the list view of an instruction
type Summary struct {
	ID             string `json:"id"`
	MedicationName string `json:"medication_name"`
	Instructions   string `json:"instructions"`
	URL            string `json:"url"`
}

// ImportResult reports a merged import
type ImportResult struct {
	Imported   int    `json:"imported"`
	BackupFile string `json:"backup_file"`
}

// GenerateID returns the ID of an instruction text. The same text always
// gives the same ID.
func GenerateID(text string) string {
	return uuid.NewMD5(idNamespace, []byte(text)).String()
}

// LegacyID returns the ID older chart installations printed for an
// instruction text: the hex MD5 digest of the text
func LegacyID(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// PageURL is the path of an instruction page
func PageURL(id string) string {
	return "/v1/instructions/" + id
}

// Store keeps instructions in memory and persists them to a JSON file
type Store struct {
	mu        sync.RWMutex
	path      string
	backupDir string
	records   *recordSet
	now       func() time.Time
}

func NewStore(path, backupDir string) *Store {
	return &Store{
		path:      path,
		backupDir: backupDir,
		records:   newRecordSet(),
		now:       time.Now,
	}
}

// Load reads the instruction file. A missing file leaves the store empty.
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		logging.Info("No instruction file found, starting empty", "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read instructions: %w", err)
	}

	set := newRecordSet()
	if err := json.Unmarshal(raw, set); err != nil {
		return fmt.Errorf("failed to decode instructions: %w", err)
	}

	s.mu.Lock()
	s.records = set
	s.mu.Unlock()

	logging.Info("Instructions loaded", "count", len(set.order))
	return nil
}

// Create stores an instruction under the ID of its text and returns the ID.
// Creating the same text again replaces the record.
func (s *Store) Create(in Instruction) (string, error) {
	raw := in.Instructions
	if strings.TrimSpace(raw) == "" {
		raw = in.Text
	}
	in.Instructions = strings.TrimSpace(raw)
	if in.Instructions == "" {
		return "", ErrMissingInstructions
	}
	in.Text = in.Instructions

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.existingLegacyIDLocked(raw, in.Instructions)
	if id == "" {
		id = GenerateID(in.Instructions)
	}

	s.records.put(id, in)
	if err := s.saveLocked(); err != nil {
		return "", err
	}
	return id, nil
}

// existingLegacyIDLocked returns the imported legacy ID already holding this
// text, or "" when none does
func (s *Store) existingLegacyIDLocked(texts ...string) string {
	for _, text := range texts {
		if id := LegacyID(text); s.records.has(id) {
			return id
		}
	}
	return ""
}

func (s *Store) Get(id string) (Instruction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records.records[id]
	if !ok {
		return Instruction{}, ErrNotFound
	}
	return rec, nil
}

// List returns every instruction in insertion order
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Summary, 0, len(s.records.order))
	for _, id := range s.records.order {
		rec := s.records.records[id]
		list = append(list, Summary{
			ID:             id,
			MedicationName: rec.MedicationName,
			Instructions:   rec.Instructions,
			URL:            PageURL(id),
		})
	}
	return list
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records.order)
}

// Export writes a timestamped backup of all instructions and returns its
// file name and content
func (s *Store) Export() (string, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filename := fmt.Sprintf("medication_data_%s.json", s.now().Format(backupTimeFormat))
	payload, err := s.writeBackupLocked(filename)
	if err != nil {
		return "", nil, err
	}

	logging.Info("Instructions exported", "file", filename, "count", len(s.records.order))
	return filename, payload, nil
}

// Import merges an exported document into the store. The current records are
// backed up first; imported IDs replace existing ones.
func (s *Store) Import(raw []byte) (ImportResult, error) {
	incoming := newRecordSet()
	if err := json.Unmarshal(raw, incoming); err != nil {
		if errors.Is(err, ErrInvalidFormat) {
			return ImportResult{}, err
		}
		return ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backup := fmt.Sprintf("pre_import_backup_%s.json", s.now().Format(backupTimeFormat))
	if _, err := s.writeBackupLocked(backup); err != nil {
		return ImportResult{}, err
	}

	merged := s.records.clone()
	for _, id := range incoming.order {
		merged.put(id, incoming.records[id])
	}

	previous := s.records
	s.records = merged
	if err := s.saveLocked(); err != nil {
		s.records = previous
		return ImportResult{}, err
	}

	logging.Info("Instructions imported", "count", len(incoming.order), "backup", backup)
	return ImportResult{Imported: len(incoming.order), BackupFile: backup}, nil
}

// PruneBackups deletes backup files older than the given age and returns
// how many were removed
func (s *Store) PruneBackups(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read backup directory: %w", err)
	}

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.backupDir, entry.Name())); err != nil {
				logging.Warn("Failed to remove old backup", "file", entry.Name(), "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

func (s *Store) writeBackupLocked(filename string) ([]byte, error) {
	payload, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode instructions: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.backupDir, filename), payload); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return payload, nil
}

func (s *Store) saveLocked() error {
	payload, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode instructions: %w", err)
	}
	if err := writeFileAtomic(s.path, payload); err != nil {
		return fmt.Errorf("failed to save instructions: %w", err)
	}
	logging.Debug("Instructions saved", "count", len(s.records.order))
	return nil
}

// writeFileAtomic writes through a temporary file renamed into place
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
