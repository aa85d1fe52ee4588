// Package health provides health checking for the chart service.
package health

import (
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/giygas/marchart-api/interfaces"
)

// Compile-time check to ensure HealthCheckerImpl implements HealthChecker
var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore     interfaces.DataStore
	instructions  interfaces.InstructionStore
	labelsEnabled bool
	now           func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies.
// The instruction store may be nil.
func NewHealthChecker(dataStore interfaces.DataStore, instructions interfaces.InstructionStore, labelsEnabled bool) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore:     dataStore,
		instructions:  instructions,
		labelsEnabled: labelsEnabled,
		now:           time.Now,
	}
}

// HealthCheck reports the reference data state. Missing reference data only
// makes the service unhealthy when labels are enabled; extraction does not
// depend on it.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	rd := h.dataStore.GetReferenceData()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()
	loaded := rd.IsDataLoaded()

	dataAge := h.now().Sub(lastUpdate)

	switch {
	case !loaded && h.labelsEnabled:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case !loaded:
		status = "degraded"
		httpStatus = http.StatusOK

	case dataAge > 24*time.Hour:
		// Reloads run twice a day, a day without one means they are failing
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	instructionCount := 0
	if h.instructions != nil {
		instructionCount = h.instructions.Count()
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"data": map[string]any{
			"labels":              len(rd.Labels),
			"drug_formulations":   len(rd.Formulations),
			"drug_aliases":        len(rd.DrugAliases),
			"formulation_aliases": len(rd.FormulationAliases),
			"load_state":          rd.State,
			"labels_enabled":      h.labelsEnabled,
			"instructions":        instructionCount,
			"is_updating":         isUpdating,
			"next_update":         h.CalculateNextUpdate().Format(time.RFC3339),
		},
		"system": map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled reload time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return NextUpdateAfter(h.now())
}

// NextUpdateAfter returns the first 06:00 or 18:00 reload after now
func NextUpdateAfter(now time.Time) time.Time {
	sixAM := time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, now.Location())
	sixPM := time.Date(now.Year(), now.Month(), now.Day(), 18, 0, 0, 0, now.Location())

	if now.Before(sixAM) {
		return sixAM
	}

	if now.Before(sixPM) {
		return sixPM
	}

	return sixAM.AddDate(0, 0, 1)
}
