package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/giygas/marchart-api/data"
	"github.com/giygas/marchart-api/dischargeparser"
	"github.com/giygas/marchart-api/health"
	"github.com/giygas/marchart-api/instructions"
	"github.com/giygas/marchart-api/labels"
	"github.com/giygas/marchart-api/leaflets"
	"github.com/giygas/marchart-api/validation"
	"github.com/go-chi/chi/v5"
)

// ============================================================================
// TEST DATA FACTORY
// ============================================================================

const testLetter = "Patient: Test\n" +
	"Medications Prescribed on Discharge\n" +
	"Aspirin [75mg dispersible tablets], 75mg once daily\n" +
	"Paracetamol [500mg tablets], 1g four times a day when required for pain\n" +
	"Dose Changes:\n" +
	"Ramipril [5mg capsules], 5mg once daily\n"

// testReferenceData builds a small, fully loaded reference snapshot
func testReferenceData() *labels.ReferenceData {
	rd := labels.NewReferenceData(
		map[labels.LabelNumber]string{
			"21": "Take with or just after food, or a meal",
			"29": "Do not take more than 2 at any one time",
		},
		[]labels.DrugFormulation{
			{Drug: "aspirin", Formulation: "tablet", Labels: []labels.LabelNumber{"21"}},
			{Drug: "paracetamol", Formulation: "", Labels: []labels.LabelNumber{"29", "30"}},
		},
		nil,
		[]labels.FormulationAlias{
			{Alias: "tablet", Route: "oral", Category: "tablet"},
			{Alias: "capsule", Route: "oral", Category: "capsule"},
		},
	)
	rd.State = labels.LoadState{Labels: true, DrugFormulations: true, FormulationAliases: true}
	return rd
}

// testPDF builds a minimal single page PDF with a valid cross-reference table
func testPDF(label string) []byte {
	content := fmt.Sprintf("%% %s\n0 0 m 100 100 l S", label)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] /Resources << >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

type testEnv struct {
	handler      *HTTPHandlerImpl
	router       chi.Router
	store        *data.DataContainer
	instructions *instructions.Store
	leafletDir   string
}

type envOptions struct {
	labelsEnabled bool
	loaded        bool
	maxLetterSize int64
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	store := data.NewDataContainer()
	store.SetServerStartTime(time.Now().Add(-90 * time.Second))
	if opts.loaded {
		store.UpdateReferenceData(testReferenceData())
	}

	dir := t.TempDir()
	instStore := instructions.NewStore(filepath.Join(dir, "instructions.json"), filepath.Join(dir, "backups"))
	leafletDir := filepath.Join(dir, "leaflets")

	if opts.maxLetterSize == 0 {
		opts.maxLetterSize = 1 << 20
	}

	h := NewHTTPHandler(
		store,
		dischargeparser.NewParser(),
		validation.NewInputValidator(),
		instStore,
		health.NewHealthChecker(store, instStore, opts.labelsEnabled),
		leaflets.NewLibrary(leafletDir),
		Options{LabelsEnabled: opts.labelsEnabled, MaxLetterSize: opts.maxLetterSize},
	)

	return &testEnv{
		handler:      h,
		router:       newTestRouter(h),
		store:        store,
		instructions: instStore,
		leafletDir:   leafletDir,
	}
}

// newTestRouter mounts the handlers on the same paths as the server
func newTestRouter(h *HTTPHandlerImpl) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/letters/extract", h.ExtractLetter)
		r.Post("/labels/match", h.MatchLabels)
		r.Get("/labels/{number}", h.GetLabel)
		r.Get("/formulations/normalize", h.NormalizeFormulation)
		r.Get("/medications", h.SearchMedications)
		r.Get("/medications/details", h.MedicationDetails)
		r.Get("/leaflets/{kind}/{filename}", h.ServeLeaflet)
		r.Post("/leaflets/{kind}/merge", h.MergeLeaflets)
		r.Post("/instructions", h.CreateInstruction)
		r.Get("/instructions", h.ListInstructions)
		r.Get("/instructions/export", h.ExportInstructions)
		r.Post("/instructions/import", h.ImportInstructions)
		r.Get("/instructions/{id}", h.GetInstruction)
		r.Get("/instructions/{id}/qr", h.GetInstructionQR)
	})
	return r
}

// ============================================================================
// MOCKS
// ============================================================================

var errDiskFull = errors.New("disk full")

// failingInstructionStore implements interfaces.InstructionStore and fails every write
type failingInstructionStore struct{}

func (f *failingInstructionStore) Create(in instructions.Instruction) (string, error) {
	if in.Instructions == "" && in.Text == "" {
		return "", instructions.ErrMissingInstructions
	}
	return "", errDiskFull
}
func (f *failingInstructionStore) Get(id string) (instructions.Instruction, error) {
	return instructions.Instruction{}, errDiskFull
}
func (f *failingInstructionStore) List() []instructions.Summary    { return nil }
func (f *failingInstructionStore) Count() int                     { return 0 }
func (f *failingInstructionStore) Export() (string, []byte, error) { return "", nil, errDiskFull }
func (f *failingInstructionStore) Import(raw []byte) (instructions.ImportResult, error) {
	return instructions.ImportResult{}, errDiskFull
}
func (f *failingInstructionStore) PruneBackups(maxAge time.Duration) (int, error) { return 0, nil }

func newFailingEnv(t *testing.T) chi.Router {
	t.Helper()
	store := data.NewDataContainer()
	h := NewHTTPHandler(
		store,
		dischargeparser.NewParser(),
		validation.NewInputValidator(),
		&failingInstructionStore{},
		health.NewHealthChecker(store, nil, false),
		leaflets.NewLibrary(t.TempDir()),
		Options{MaxLetterSize: 1024},
	)
	return newTestRouter(h)
}

// ============================================================================
// ASSERTION HELPERS
// ============================================================================

func assertStatus(t *testing.T, got, want int, body string) {
	t.Helper()
	if got != want {
		t.Errorf("Expected status %d, got %d (body: %s)", want, got, body)
	}
}

func assertJSONContentType(t *testing.T, header http.Header) {
	t.Helper()
	if ct := header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
