// Package scheduler reloads the label reference data on a schedule, prunes
// old instruction backups and watches the data age. It coordinates reloads
// with the data container through dependency injection.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/giygas/marchart-api/interfaces"
	"github.com/giygas/marchart-api/labels"
	"github.com/giygas/marchart-api/logging"
	"github.com/giygas/marchart-api/metrics"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// ErrReloadInProgress is returned when a reload is requested while another runs
var ErrReloadInProgress = errors.New("reference data reload already in progress")

const (
	TriggerStartup   = "startup"
	TriggerScheduled = "scheduled"
	TriggerWatch     = "watch"
	TriggerManual    = "manual"
)

// Options configures the optional jobs of the scheduler
type Options struct {
	// RequireData makes a failed initial load fatal
	RequireData bool
	// BackupRetention is the maximum age of instruction backups, zero disables pruning
	BackupRetention time.Duration
}

// Scheduler handles reference data reloads and housekeeping
type Scheduler struct {
	dataStore    interfaces.DataStore
	loader       interfaces.ReferenceLoader
	instructions interfaces.InstructionStore
	opts         Options
	scheduler    *gocron.Scheduler
	done         chan struct{}
}

// NewScheduler creates a new scheduler. The instruction store may be nil.
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.ReferenceLoader, instructions interfaces.InstructionStore, opts Options) *Scheduler {
	return &Scheduler{
		dataStore:    dataStore,
		loader:       loader,
		instructions: instructions,
		opts:         opts,
		scheduler:    gocron.NewScheduler(time.Local),
		done:         make(chan struct{}),
	}
}

// Start loads the reference data and schedules the periodic jobs
func (s *Scheduler) Start() error {
	if err := s.ReloadReferenceData(TriggerStartup); err != nil {
		if s.opts.RequireData {
			logging.Error("Failed to perform initial reference data load", "error", err)
			return fmt.Errorf("initial reference data load failed: %w", err)
		}
		logging.Warn("Reference data incomplete, labels will be unavailable", "error", err)
	}

	// Reload at 06:00 and 18:00 daily
	_, err := s.scheduler.Every(1).Days().At("06:00;18:00").Do(func() {
		if err := s.ReloadReferenceData(TriggerScheduled); err != nil {
			logging.Error("Failed to reload reference data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule reloads", "error", err)
		return fmt.Errorf("failed to schedule reloads: %w", err)
	}

	if s.instructions != nil && s.opts.BackupRetention > 0 {
		_, err = s.scheduler.Every(1).Days().At("03:00").Do(s.pruneBackups)
		if err != nil {
			logging.Error("Failed to schedule backup pruning", "error", err)
			return fmt.Errorf("failed to schedule backup pruning: %w", err)
		}
	}

	s.scheduler.StartAsync()

	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler and the health monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// ReloadReferenceData loads the reference tables and swaps them in. A load
// that leaves the data unusable never replaces a usable snapshot.
func (s *Scheduler) ReloadReferenceData(trigger string) error {
	// Prevent concurrent reloads
	if !s.dataStore.BeginUpdate() {
		logging.Info("Reload already in progress, skipping...", "trigger", trigger)
		return ErrReloadInProgress
	}
	defer s.dataStore.EndUpdate()

	start := time.Now()
	logging.Info("Starting reference data reload", "trigger", trigger)

	rd, loadErr := s.loader.LoadReferenceData()
	if rd == nil {
		metrics.ReferenceDataReloadsTotal.WithLabelValues(trigger, "failed").Inc()
		if loadErr == nil {
			loadErr = errors.New("loader returned no data")
		}
		return fmt.Errorf("failed to load reference data: %w", loadErr)
	}

	current := s.dataStore.GetReferenceData()
	if !rd.IsDataLoaded() && current.IsDataLoaded() {
		logging.Warn("Keeping previous reference data, new load is incomplete", "trigger", trigger, "error", loadErr)
		metrics.ReferenceDataReloadsTotal.WithLabelValues(trigger, "failed").Inc()
		return fmt.Errorf("reference data reload incomplete: %w", loadErr)
	}

	s.dataStore.UpdateReferenceData(rd)
	recordTableSizes(rd)

	status := "success"
	if loadErr != nil {
		status = "partial"
	}
	metrics.ReferenceDataReloadsTotal.WithLabelValues(trigger, status).Inc()

	logging.Info("Reference data reload completed",
		"trigger", trigger,
		"status", status,
		"duration", time.Since(start).String(),
		"labels", len(rd.Labels),
	)

	if loadErr != nil {
		return fmt.Errorf("reference data partially loaded: %w", loadErr)
	}
	return nil
}

func recordTableSizes(rd *labels.ReferenceData) {
	metrics.ReferenceDataEntries.WithLabelValues("labels").Set(float64(len(rd.Labels)))
	metrics.ReferenceDataEntries.WithLabelValues("drug_formulations").Set(float64(len(rd.Formulations)))
	metrics.ReferenceDataEntries.WithLabelValues("drug_aliases").Set(float64(len(rd.DrugAliases)))
	metrics.ReferenceDataEntries.WithLabelValues("formulation_aliases").Set(float64(len(rd.FormulationAliases)))
}

func (s *Scheduler) pruneBackups() {
	removed, err := s.instructions.PruneBackups(s.opts.BackupRetention)
	if err != nil {
		logging.Error("Failed to prune instruction backups", "error", err)
		return
	}
	if removed > 0 {
		logging.Info("Pruned instruction backups", "removed", removed)
	}
}

// startHealthMonitoring warns when the reference data stops being refreshed
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				if !s.dataStore.GetReferenceData().IsDataLoaded() {
					continue
				}
				lastUpdate := s.dataStore.GetLastUpdated()
				if time.Since(lastUpdate) > 25*time.Hour {
					logging.Warn("Reference data hasn't been reloaded in over 25 hours")
				}
			}
		}
	}()
}
