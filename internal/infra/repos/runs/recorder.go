package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmrzaf/termwatch/internal/domain"
)

func (s *Store) CreateRun(ctx context.Context, run *domain.Run) error {
	if run.RunID == uuid.Nil {
		run.RunID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO update_runs (
			run_id, start_time, end_time, duration_seconds, duration_formatted,
			success, updates_found, server_name, log_file_path, whatif_mode, forced_run, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.RunID.String(), s.timeArg(run.StartTime), s.timePtrArg(run.EndTime),
		arg(run.DurationSeconds), arg(run.DurationFormatted),
		run.Success, run.UpdatesFound, run.ServerName, arg(run.LogFilePath),
		run.WhatIfMode, run.ForcedRun, s.timeArg(run.CreatedAt),
	)
	return err
}

// FinishRun records the completion fields of a run.
func (s *Store) FinishRun(ctx context.Context, run *domain.Run) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE update_runs SET
			end_time = ?, duration_seconds = ?, duration_formatted = ?,
			success = ?, updates_found = ?, log_file_path = ?
		WHERE run_id = ?`),
		s.timePtrArg(run.EndTime), arg(run.DurationSeconds), arg(run.DurationFormatted),
		run.Success, run.UpdatesFound, arg(run.LogFilePath),
		run.RunID.String(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.RunID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) AddStep(ctx context.Context, step *domain.Step) error {
	return s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO update_steps (
			run_id, terminology_type, step_name, step_order, success, details,
			start_time, duration_seconds, duration_formatted,
			release_version, new_release, concept_count, description_count,
			vmp_count, amp_count, xml_validation_rate, snomed_validation_rate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING step_id`),
		step.RunID.String(), string(step.TerminologyType), step.StepName, step.StepOrder, step.Success, arg(step.Details),
		s.timePtrArg(step.StartTime), arg(step.DurationSeconds), arg(step.DurationFormatted),
		arg(step.ReleaseVersion), arg(step.NewRelease), arg(step.ConceptCount), arg(step.DescriptionCount),
		arg(step.VMPCount), arg(step.AMPCount), arg(step.XMLValidationRate), arg(step.SnomedValidationRate),
	).Scan(&step.StepID)
}

func (s *Store) AddError(ctx context.Context, e *domain.RunError) error {
	if e.ErrorMessage == "" {
		return errors.New("error message is required")
	}
	if e.ErrorTimestamp.IsZero() {
		e.ErrorTimestamp = time.Now().UTC()
	}
	return s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO update_errors (run_id, error_source, error_message, error_timestamp)
		VALUES (?, ?, ?, ?)
		RETURNING error_id`),
		e.RunID.String(), arg(e.ErrorSource), e.ErrorMessage, s.timeArg(e.ErrorTimestamp),
	).Scan(&e.ErrorID)
}

// SaveRelease inserts a new tracking row when ReleaseTrackingID is zero and
// otherwise updates the download/import progress of an existing one.
func (s *Store) SaveRelease(ctx context.Context, rel *domain.Release) error {
	if rel.ReleaseTrackingID == 0 {
		return s.db.QueryRowContext(ctx, s.rebind(`
			INSERT INTO trud_releases (
				item_name, trud_item_number, release_id, release_date,
				detected_date, downloaded_date, imported_date, import_success
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING release_tracking_id`),
			rel.ItemName, rel.TRUDItemNumber, rel.ReleaseID, s.timePtrArg(rel.ReleaseDate),
			s.timeArg(rel.DetectedDate), s.timePtrArg(rel.DownloadedDate), s.timePtrArg(rel.ImportedDate), arg(rel.ImportSuccess),
		).Scan(&rel.ReleaseTrackingID)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE trud_releases SET
			downloaded_date = ?, imported_date = ?, import_success = ?
		WHERE release_tracking_id = ?`),
		s.timePtrArg(rel.DownloadedDate), s.timePtrArg(rel.ImportedDate), arg(rel.ImportSuccess),
		rel.ReleaseTrackingID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("release %d: %w", rel.ReleaseTrackingID, domain.ErrNotFound)
	}
	return nil
}
