package core

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/woundcare/internal/logging"
	"github.com/google/uuid"
)

// ErrMissingInput is returned when one of the three tables is nil.
var ErrMissingInput = errors.New("no file provided: census, roster and schedule are all required")

// Prepared holds the three inputs after header normalization and identifier
// resolution. Column pickers list these tables' columns.
type Prepared struct {
	Census   *Table
	Roster   *Table
	Schedule *Table
}

// Prepare normalizes headers and resolves the identifier of each input.
// The first failure aborts; no table is returned in that case.
func Prepare(census, roster, schedule *Table) (*Prepared, error) {
	if census == nil || roster == nil || schedule == nil {
		return nil, ErrMissingInput
	}

	var (
		p   Prepared
		err error
	)
	if p.Census, err = PrepareTable(census, SourceCensus); err != nil {
		return nil, err
	}
	if p.Roster, err = PrepareTable(roster, SourceRoster); err != nil {
		return nil, err
	}
	if p.Schedule, err = PrepareTable(schedule, SourceSchedule); err != nil {
		return nil, err
	}
	return &p, nil
}

// Run executes the whole reconciliation for one set of inputs:
// normalize, resolve, extract flags, filter, merge, finalize.
// The inputs are never modified and nothing outlives the call.
func Run(ctx context.Context, in Inputs) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := logging.WithFields(ctx, "run_id", runID)

	p, err := Prepare(in.Census, in.Roster, in.Schedule)
	if err != nil {
		logger.Warn("run aborted", "stage", "resolve", "error", err)
		return nil, err
	}
	logger.Debug("inputs resolved",
		"census_rows", p.Census.Len(),
		"roster_rows", p.Roster.Len(),
		"schedule_rows", p.Schedule.Len(),
	)

	flagged, err := ExtractWoundFlags(p.Census, p.Roster)
	if err != nil {
		logger.Warn("run aborted", "stage", "flags", "error", err)
		return nil, err
	}
	logger.Info("wound patients found", "patient_count", flagged.Len())

	filtered, err := FilterSchedule(p.Schedule, flagged)
	if err != nil {
		logger.Warn("run aborted", "stage", "filter", "error", err)
		return nil, err
	}

	merged, mergeStats := MergeTables(filtered, p.Census, p.Roster)
	if mergeStats.CensusDuplicates > 0 || mergeStats.RosterDuplicates > 0 {
		logger.Warn("duplicate identifier rows discarded",
			"census_duplicates_dropped", mergeStats.CensusDuplicates,
			"roster_duplicates_dropped", mergeStats.RosterDuplicates,
		)
	}

	final := Finalize(merged, in.Selection, p.Schedule, p.Census, p.Roster)

	result := &Result{
		RunID:        runID,
		PatientCount: flagged.Len(),
		Table:        final,
		Stats: RunStats{
			ScheduleRows:     p.Schedule.Len(),
			FilteredRows:     filtered.Len(),
			CensusDuplicates: mergeStats.CensusDuplicates,
			RosterDuplicates: mergeStats.RosterDuplicates,
			Duration:         time.Since(start),
		},
	}

	logger.Info("run completed",
		"schedule_rows", result.Stats.ScheduleRows,
		"filtered_rows", result.Stats.FilteredRows,
		"output_rows", final.Len(),
		"output_columns", len(final.Columns),
		"duration_ms", result.Stats.Duration.Milliseconds(),
	)
	return result, nil
}
