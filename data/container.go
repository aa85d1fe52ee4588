// Package data provides thread-safe storage of the label reference data.
// The DataContainer swaps whole snapshots atomically so reloads never block
// label lookups.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/marchart-api/interfaces"
	"github.com/giygas/marchart-api/labels"
	"github.com/giygas/marchart-api/logging"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the reference data with atomic pointers for zero-downtime updates
type DataContainer struct {
	referenceData   atomic.Pointer[labels.ReferenceData]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a container holding empty reference data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.referenceData.Store(labels.NewReferenceData(nil, nil, nil, nil))
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetReferenceData returns the current snapshot. It is never nil.
func (dc *DataContainer) GetReferenceData() *labels.ReferenceData {
	if rd := dc.referenceData.Load(); rd != nil {
		return rd
	}

	logging.Warn("Reference data is empty or invalid")
	return labels.NewReferenceData(nil, nil, nil, nil)
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a data update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateReferenceData atomically replaces the snapshot. A nil snapshot is ignored.
func (dc *DataContainer) UpdateReferenceData(rd *labels.ReferenceData) {
	if rd == nil {
		logging.Warn("Ignoring nil reference data update")
		return
	}

	dc.referenceData.Store(rd)
	dc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a data update operation
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a data update operation
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
