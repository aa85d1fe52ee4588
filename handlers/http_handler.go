// Package handlers provides the HTTP request handlers of the chart service.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/giygas/marchart-api/dischargeparser"
	"github.com/giygas/marchart-api/dischargeparser/entities"
	"github.com/giygas/marchart-api/instructions"
	"github.com/giygas/marchart-api/interfaces"
	"github.com/giygas/marchart-api/labels"
	"github.com/giygas/marchart-api/leaflets"
	"github.com/giygas/marchart-api/logging"
	"github.com/go-chi/chi/v5"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// maxJSONBody bounds the small JSON bodies of the label and instruction endpoints
const maxJSONBody = 64 * 1024

// Options holds the handler settings taken from the configuration
type Options struct {
	LabelsEnabled bool
	MaxLetterSize int64
}

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	parser        interfaces.LetterParser
	validator     interfaces.InputValidator
	instructions  interfaces.InstructionStore
	healthChecker interfaces.HealthChecker
	library       *leaflets.Library
	opts          Options
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	dataStore interfaces.DataStore,
	parser interfaces.LetterParser,
	validator interfaces.InputValidator,
	instructionStore interfaces.InstructionStore,
	healthChecker interfaces.HealthChecker,
	library *leaflets.Library,
	opts Options,
) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		parser:        parser,
		validator:     validator,
		instructions:  instructionStore,
		healthChecker: healthChecker,
		library:       library,
		opts:          opts,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	LastUpdate    any            `json:"last_update"`
	DataAgeHours  any            `json:"data_age_hours"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// ExtractResponse is the body of a letter extraction
type ExtractResponse struct {
	Medications   []MedicationResult `json:"medications"`
	Count         int                `json:"count"`
	LabelsEnabled bool               `json:"labelsEnabled"`
}

// MedicationResult is an extracted medication, with its labels when requested
type MedicationResult struct {
	entities.Medication
	Labels     []labels.LabelNumber `json:"labels,omitempty"`
	LabelTexts []string             `json:"labelTexts,omitempty"`
}

// LabelMatchResponse is the body of a label lookup for one medication
type LabelMatchResponse struct {
	Name          string                `json:"name"`
	Form          string                `json:"form"`
	Drug          string                `json:"drug"`
	Formulation   labels.NormalizedForm `json:"formulation"`
	Labels        []labels.LabelNumber  `json:"labels"`
	LabelTexts    []string              `json:"labelTexts"`
	LabelsEnabled bool                  `json:"labelsEnabled"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, details, httpStatus := h.healthChecker.HealthCheck()

	var uptime time.Duration
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	data, _ := details["data"].(map[string]any)
	system, _ := details["system"].(map[string]any)

	h.RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		LastUpdate:    details["last_update"],
		DataAgeHours:  details["data_age_hours"],
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System:        system,
	})
}

// ExtractLetter extracts the discharge medications of a letter. The letter is
// sent as text/plain or as JSON {"text": "..."}; ?labels=true attaches BNF labels.
func (h *HTTPHandlerImpl) ExtractLetter(w http.ResponseWriter, r *http.Request) {
	text, status, err := h.readLetter(r)
	if err != nil {
		h.RespondWithError(w, status, err.Error())
		return
	}

	if err := h.validator.ValidateLetter(text); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	meds := h.parser.ParseLetter(text)
	withLabels := r.URL.Query().Get("labels") == "true"

	var labeler *labels.Labeler
	if withLabels {
		labeler = labels.NewLabeler(h.dataStore.GetReferenceData(), h.opts.LabelsEnabled)
	}

	results := BuildResults(meds, labeler)

	h.RespondWithJSON(w, http.StatusOK, ExtractResponse{
		Medications:   results,
		Count:         len(results),
		LabelsEnabled: h.opts.LabelsEnabled,
	})
}

// BuildResults pairs each medication with its labels. A nil labeler leaves them empty.
func BuildResults(meds []entities.Medication, labeler *labels.Labeler) []MedicationResult {
	results := make([]MedicationResult, 0, len(meds))
	for _, med := range meds {
		result := MedicationResult{Medication: med}
		if labeler != nil {
			result.Labels = labeler.LabelsFor(labels.Query{Name: med.Name, Form: med.FormValue()})
			result.LabelTexts = labeler.LabelTexts(result.Labels)
		}
		results = append(results, result)
	}
	return results
}

// readLetter returns the normalised letter text and the status to answer with on error
func (h *HTTPHandlerImpl) readLetter(r *http.Request) (string, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		var req struct {
			Text string `json:"text"`
		}
		// A \uXXXX escape is six bytes for each byte of the letter
		limit := 6*h.opts.MaxLetterSize + 1024
		raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		if err != nil {
			return "", readStatus(err), fmt.Errorf("failed to read body: %w", err)
		}
		if int64(len(raw)) > limit {
			return "", http.StatusRequestEntityTooLarge, fmt.Errorf("%w (%d bytes)", dischargeparser.ErrLetterTooLarge, h.opts.MaxLetterSize)
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return "", http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err)
		}
		if int64(len(req.Text)) > h.opts.MaxLetterSize {
			return "", http.StatusRequestEntityTooLarge, fmt.Errorf("%w (%d bytes)", dischargeparser.ErrLetterTooLarge, h.opts.MaxLetterSize)
		}
		text, err := dischargeparser.DecodeLetter([]byte(req.Text))
		if err != nil {
			return "", http.StatusBadRequest, err
		}
		return text, 0, nil

	case "", "text/plain":
		text, err := dischargeparser.ReadLetter(r.Body, h.opts.MaxLetterSize)
		if err != nil {
			return "", readStatus(err), err
		}
		return text, 0, nil

	default:
		return "", http.StatusUnsupportedMediaType, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

// readStatus maps a body read error to the status to answer with
func readStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, dischargeparser.ErrLetterTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// MatchLabels returns the BNF labels for one medication name and formulation
func (h *HTTPHandlerImpl) MatchLabels(w http.ResponseWriter, r *http.Request) {
	var q labels.Query
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&q); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.validator.ValidateMedicationName(q.Name); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.ValidateFormulation(q.Form); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rd := h.dataStore.GetReferenceData()
	if h.opts.LabelsEnabled && !rd.IsDataLoaded() {
		h.RespondWithError(w, http.StatusServiceUnavailable, "Label reference data is not loaded")
		return
	}

	labeler := labels.NewLabeler(rd, h.opts.LabelsEnabled)
	numbers := labeler.LabelsFor(q)

	h.RespondWithJSON(w, http.StatusOK, LabelMatchResponse{
		Name:          q.Name,
		Form:          q.Form,
		Drug:          rd.NormalizeDrugName(q.Name),
		Formulation:   rd.NormalizeFormulation(q.Form),
		Labels:        numbers,
		LabelTexts:    labeler.LabelTexts(numbers),
		LabelsEnabled: h.opts.LabelsEnabled,
	})
}

// GetLabel returns the text of one BNF label
func (h *HTTPHandlerImpl) GetLabel(w http.ResponseWriter, r *http.Request) {
	number, err := h.validator.ValidateLabelNumber(chi.URLParam(r, "number"))
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	rd := h.dataStore.GetReferenceData()
	if !rd.State.Labels {
		h.RespondWithError(w, http.StatusServiceUnavailable, "Label reference data is not loaded")
		return
	}

	text, ok := labels.NewLabeler(rd, h.opts.LabelsEnabled).LabelText(number)
	if !ok {
		h.RespondWithError(w, http.StatusNotFound, fmt.Sprintf("Label %s not found", number))
		return
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]any{
		"number": number,
		"text":   text,
	})
}

// NormalizeFormulation resolves a formulation through the alias table
func (h *HTTPHandlerImpl) NormalizeFormulation(w http.ResponseWriter, r *http.Request) {
	form := r.URL.Query().Get("form")
	if strings.TrimSpace(form) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Missing form parameter")
		return
	}
	if err := h.validator.ValidateFormulation(form); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.RespondWithJSON(w, http.StatusOK, h.dataStore.GetReferenceData().NormalizeFormulation(form))
}

// SearchMedications lists the leaflet catalog, filtered when ?search= is set
func (h *HTTPHandlerImpl) SearchMedications(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("search")
	if term == "" {
		h.RespondWithJSON(w, http.StatusOK, leaflets.All())
		return
	}

	if err := h.validator.ValidateSearchTerm(term); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := leaflets.Search(term)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Always return 200 with results array (empty if no matches)
	h.RespondWithJSON(w, http.StatusOK, results)
}

// MedicationDetails returns the printed name and PDFs for a medication name
func (h *HTTPHandlerImpl) MedicationDetails(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if err := h.validator.ValidateMedicationName(name); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	details, err := leaflets.GetDetails(name)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.RespondWithJSON(w, http.StatusOK, details)
}

// ServeLeaflet serves a catalog PDF
func (h *HTTPHandlerImpl) ServeLeaflet(w http.ResponseWriter, r *http.Request) {
	kind, err := leaflets.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.RespondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	filename := chi.URLParam(r, "filename")
	if err := h.validator.ValidateLeafletFilename(filename); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := h.library.Path(kind, filename)
	if err != nil {
		h.RespondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	if _, err := os.Stat(path); err != nil {
		logging.Warn("Catalog leaflet missing on disk", "path", path, "error", err)
		h.RespondWithError(w, http.StatusNotFound, "Leaflet file not available")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", "public, max-age=86400") // 1 day
	http.ServeFile(w, r, path)
}

// maxMergeNames bounds the medications of one merged leaflet pack
const maxMergeNames = 50

// MergeRequest is the body of a leaflet pack request
type MergeRequest struct {
	MedicationNames []string `json:"medicationNames"`
}

// MergeLeaflets returns one PDF holding the leaflets of the requested kind for
// every medication. Medications without a leaflet are listed in the
// X-Not-Found-Medications headers.
func (h *HTTPHandlerImpl) MergeLeaflets(w http.ResponseWriter, r *http.Request) {
	kind, err := leaflets.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.RespondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	var req MergeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.MedicationNames) == 0 {
		h.RespondWithError(w, http.StatusBadRequest, leaflets.ErrEmptyName.Error())
		return
	}
	if len(req.MedicationNames) > maxMergeNames {
		h.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("at most %d medications per request", maxMergeNames))
		return
	}
	for _, name := range req.MedicationNames {
		if err := h.validator.ValidateMedicationName(name); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// Held in memory until Merge succeeds
	var buf bytes.Buffer
	result, err := h.library.Merge(&buf, kind, req.MedicationNames)
	if errors.Is(err, leaflets.ErrNoLeaflets) {
		h.RespondWithJSON(w, http.StatusNotFound, map[string]any{
			"error":               http.StatusText(http.StatusNotFound),
			"message":             err.Error(),
			"code":                http.StatusNotFound,
			"notFoundMedications": result.NotFound,
		})
		return
	}
	if err != nil {
		logging.Error("Failed to merge leaflets", "kind", kind, "files", result.Files, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to merge leaflets")
		return
	}

	for _, name := range result.NotFound {
		w.Header().Add("X-Not-Found-Medications", name)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{
		"filename": fmt.Sprintf("merged_%s_%s.pdf", kind.Folder(), time.Now().Format("20060102150405")),
	}))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// CreateInstruction stores an instruction page and returns its ID
func (h *HTTPHandlerImpl) CreateInstruction(w http.ResponseWriter, r *http.Request) {
	var in instructions.Instruction
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&in); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if in.MedicationName != "" {
		if err := h.validator.ValidateMedicationName(in.MedicationName); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	id, err := h.instructions.Create(in)
	if errors.Is(err, instructions.ErrMissingInstructions) {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logging.Error("Failed to store instruction", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to store instruction")
		return
	}

	h.RespondWithJSON(w, http.StatusCreated, map[string]string{
		"id":  id,
		"url": instructions.PageURL(id),
	})
}

// ListInstructions returns every stored instruction in insertion order
func (h *HTTPHandlerImpl) ListInstructions(w http.ResponseWriter, r *http.Request) {
	list := h.instructions.List()
	if list == nil {
		list = []instructions.Summary{}
	}

	h.RespondWithJSON(w, http.StatusOK, map[string]any{
		"instructions": list,
		"count":        len(list),
	})
}

// GetInstruction returns one instruction page
func (h *HTTPHandlerImpl) GetInstruction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.validator.ValidateInstructionID(id); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	in, err := h.instructions.Get(id)
	if errors.Is(err, instructions.ErrNotFound) {
		h.RespondWithError(w, http.StatusNotFound, "Instruction not found")
		return
	}
	if err != nil {
		logging.Error("Failed to read instruction", "id", id, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to read instruction")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, in)
}

// GetInstructionQR returns a PNG QR code linking to an instruction page,
// captioned with the medication name unless ?caption=false
func (h *HTTPHandlerImpl) GetInstructionQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.validator.ValidateInstructionID(id); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	in, err := h.instructions.Get(id)
	if errors.Is(err, instructions.ErrNotFound) {
		h.RespondWithError(w, http.StatusNotFound, "Instruction not found")
		return
	}
	if err != nil {
		logging.Error("Failed to read instruction", "id", id, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to read instruction")
		return
	}

	caption := in.MedicationName
	if r.URL.Query().Get("caption") == "false" {
		caption = ""
	}

	png, err := instructions.QRCode(absoluteURL(r, instructions.PageURL(id)), caption)
	if err != nil {
		logging.Error("Failed to render QR code", "id", id, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to render QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400") // 1 day
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// absoluteURL joins path to the scheme and host the request was made on
func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + r.Host + path
}

// ExportInstructions downloads every instruction as a JSON file
func (h *HTTPHandlerImpl) ExportInstructions(w http.ResponseWriter, r *http.Request) {
	filename, payload, err := h.instructions.Export()
	if err != nil {
		logging.Error("Failed to export instructions", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to export instructions")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// ImportInstructions merges an exported file into the store. The file is
// sent as the raw JSON body or as the "file" field of a multipart form.
func (h *HTTPHandlerImpl) ImportInstructions(w http.ResponseWriter, r *http.Request) {
	raw, err := readUpload(r)
	if err != nil {
		h.RespondWithError(w, readStatus(err), err.Error())
		return
	}

	result, err := h.instructions.Import(raw)
	if errors.Is(err, instructions.ErrInvalidFormat) {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logging.Error("Failed to import instructions", "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Failed to import instructions")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, result)
}

func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return raw, nil
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return raw, nil
}
