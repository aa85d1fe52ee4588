// Package interfaces defines the abstractions shared by the chart service
// packages so that handlers, the scheduler and health checks can be tested
// with hand-written mocks.
package interfaces

import (
	"net/http"
	"time"

	"github.com/giygas/marchart-api/dischargeparser/entities"
	"github.com/giygas/marchart-api/instructions"
	"github.com/giygas/marchart-api/labels"
)

// DataStore holds the current label reference data snapshot.
// Reads are lock-free; a reload swaps the whole snapshot.
type DataStore interface {
	GetReferenceData() *labels.ReferenceData
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateReferenceData(data *labels.ReferenceData)
	BeginUpdate() bool
	EndUpdate()
}

// ReferenceLoader reads label reference data from its source
type ReferenceLoader interface {
	LoadReferenceData() (*labels.ReferenceData, error)
}

// LetterParser extracts medications from discharge letter text
type LetterParser interface {
	ParseLetter(text string) []entities.Medication
}

// InstructionStore persists instruction pages
type InstructionStore interface {
	Create(in instructions.Instruction) (string, error)
	Get(id string) (instructions.Instruction, error)
	List() []instructions.Summary
	Count() int
	Export() (filename string, payload []byte, err error)
	Import(raw []byte) (instructions.ImportResult, error)
	PruneBackups(maxAge time.Duration) (int, error)
}

// Scheduler runs the periodic jobs
type Scheduler interface {
	Start() error
	Stop()
}

// HTTPHandler serves the API endpoints
type HTTPHandler interface {
	HealthCheck(w http.ResponseWriter, r *http.Request)

	ExtractLetter(w http.ResponseWriter, r *http.Request)
	MatchLabels(w http.ResponseWriter, r *http.Request)
	GetLabel(w http.ResponseWriter, r *http.Request)
	NormalizeFormulation(w http.ResponseWriter, r *http.Request)

	SearchMedications(w http.ResponseWriter, r *http.Request)
	MedicationDetails(w http.ResponseWriter, r *http.Request)
	ServeLeaflet(w http.ResponseWriter, r *http.Request)
	MergeLeaflets(w http.ResponseWriter, r *http.Request)

	CreateInstruction(w http.ResponseWriter, r *http.Request)
	ListInstructions(w http.ResponseWriter, r *http.Request)
	GetInstruction(w http.ResponseWriter, r *http.Request)
	GetInstructionQR(w http.ResponseWriter, r *http.Request)
	ExportInstructions(w http.ResponseWriter, r *http.Request)
	ImportInstructions(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports service health
type HealthChecker interface {
	// HealthCheck returns the status, details and the HTTP status to answer with
	HealthCheck() (status string, details map[string]any, httpStatus int)

	CalculateNextUpdate() time.Time
}

// InputValidator checks user input before it reaches the domain packages
type InputValidator interface {
	ValidateSearchTerm(input string) error
	ValidateLetter(text string) error
	ValidateMedicationName(input string) error
	ValidateFormulation(input string) error
	ValidateLabelNumber(input string) (labels.LabelNumber, error)
	ValidateInstructionID(input string) error
	ValidateLeafletFilename(input string) error
}
