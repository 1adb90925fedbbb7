package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmrzaf/termwatch/internal/domain"
)

type dialect string

const (
	dialectSQLite   dialect = "sqlite3"
	dialectPostgres dialect = "postgres"
)

// sqliteTimeLayout is fixed width so that text comparison orders timestamps.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements Repository and Recorder over database/sql. Queries are
// written with ? placeholders and rebound for PostgreSQL.
type Store struct {
	db      *sql.DB
	dialect dialect
}

var (
	_ Repository = (*Store)(nil)
	_ Recorder   = (*Store)(nil)
)

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (s *Store) timeArg(t time.Time) any {
	if s.dialect == dialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func (s *Store) timePtrArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.timeArg(*t)
}

const summaryColumns = `run_id, start_time, end_time, duration_formatted, overall_success,
	updates_found, server_name, whatif_mode,
	snomed_success, snomed_new_release, snomed_version, concept_count, description_count,
	dmd_success, dmd_new_release, dmd_version, vmp_count, amp_count,
	xml_validation_rate, snomed_validation_rate, error_count`

func (s *Store) RunCounts(ctx context.Context) (domain.RunCounts, error) {
	var c domain.RunCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0)
		FROM update_runs`).Scan(&c.Total, &c.Successful)
	return c, err
}

func (s *Store) ListSummaries(ctx context.Context, limit, offset int) ([]domain.Summary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+summaryColumns+`
		FROM vw_update_summary
		ORDER BY start_time DESC, run_id DESC
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Summary, 0)
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) LastSuccessfulStart(ctx context.Context) (*time.Time, error) {
	return s.latestStart(ctx, `SELECT start_time FROM update_runs WHERE success ORDER BY start_time DESC, run_id DESC LIMIT 1`)
}

func (s *Store) LastRunStart(ctx context.Context) (*time.Time, error) {
	return s.latestStart(ctx, `SELECT start_time FROM update_runs ORDER BY start_time DESC, run_id DESC LIMIT 1`)
}

func (s *Store) latestStart(ctx context.Context, query string) (*time.Time, error) {
	var t dbTime
	if err := s.db.QueryRowContext(ctx, query).Scan(&t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t.ptr(), nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	var (
		run          domain.Run
		start        dbTime
		end          dbTime
		created      dbTime
		durSeconds   sql.NullInt64
		durFormatted sql.NullString
		logPath      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT run_id, start_time, end_time, duration_seconds, duration_formatted,
			success, updates_found, server_name, log_file_path, whatif_mode, forced_run, created_at
		FROM update_runs WHERE run_id = ?`), id.String()).Scan(
		&run.RunID, &start, &end, &durSeconds, &durFormatted,
		&run.Success, &run.UpdatesFound, &run.ServerName, &logPath, &run.WhatIfMode, &run.ForcedRun, &created,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	run.StartTime = start.Time
	run.EndTime = end.ptr()
	run.DurationSeconds = intPtr(durSeconds)
	run.DurationFormatted = stringPtr(durFormatted)
	run.LogFilePath = stringPtr(logPath)
	run.CreatedAt = created.Time
	return &run, nil
}

func (s *Store) ListSteps(ctx context.Context, runID uuid.UUID) ([]domain.Step, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT step_id, run_id, terminology_type, step_name, step_order, success, details,
			start_time, duration_seconds, duration_formatted,
			release_version, new_release, concept_count, description_count,
			vmp_count, amp_count, xml_validation_rate, snomed_validation_rate
		FROM update_steps
		WHERE run_id = ?
		ORDER BY terminology_type, step_order, step_id`), runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Step, 0)
	for rows.Next() {
		var (
			st           domain.Step
			details      sql.NullString
			start        dbTime
			durSeconds   sql.NullInt64
			durFormatted sql.NullString
			version      sql.NullString
			newRelease   sql.NullBool
			concepts     sql.NullInt64
			descriptions sql.NullInt64
			vmps         sql.NullInt64
			amps         sql.NullInt64
			xmlRate      sql.NullFloat64
			snomedRate   sql.NullFloat64
		)
		if err := rows.Scan(
			&st.StepID, &st.RunID, &st.TerminologyType, &st.StepName, &st.StepOrder, &st.Success, &details,
			&start, &durSeconds, &durFormatted,
			&version, &newRelease, &concepts, &descriptions,
			&vmps, &amps, &xmlRate, &snomedRate,
		); err != nil {
			return nil, err
		}
		st.Details = stringPtr(details)
		st.StartTime = start.ptr()
		st.DurationSeconds = intPtr(durSeconds)
		st.DurationFormatted = stringPtr(durFormatted)
		st.ReleaseVersion = stringPtr(version)
		st.NewRelease = boolPtr(newRelease)
		st.ConceptCount = int64Ptr(concepts)
		st.DescriptionCount = int64Ptr(descriptions)
		st.VMPCount = intPtr(vmps)
		st.AMPCount = intPtr(amps)
		st.XMLValidationRate = floatPtr(xmlRate)
		st.SnomedValidationRate = floatPtr(snomedRate)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) ListErrors(ctx context.Context, runID uuid.UUID) ([]domain.RunError, error) {
	return s.queryErrors(ctx, `
		SELECT error_id, run_id, error_source, error_message, error_timestamp
		FROM update_errors
		WHERE run_id = ?
		ORDER BY error_timestamp, error_id`, runID.String())
}

func (s *Store) RecentErrors(ctx context.Context, limit int) ([]domain.RunError, error) {
	return s.queryErrors(ctx, `
		SELECT error_id, run_id, error_source, error_message, error_timestamp
		FROM update_errors
		ORDER BY error_timestamp DESC, error_id DESC
		LIMIT ?`, limit)
}

func (s *Store) queryErrors(ctx context.Context, query string, args ...any) ([]domain.RunError, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RunError, 0)
	for rows.Next() {
		var (
			e      domain.RunError
			source sql.NullString
			ts     dbTime
		)
		if err := rows.Scan(&e.ErrorID, &e.RunID, &source, &e.ErrorMessage, &ts); err != nil {
			return nil, err
		}
		e.ErrorSource = stringPtr(source)
		e.ErrorTimestamp = ts.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountErrors(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM update_errors`).Scan(&n)
	return n, err
}

// AverageSnomedValidationRate returns nil when no summary carries a rate.
func (s *Store) AverageSnomedValidationRate(ctx context.Context) (*float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(snomed_validation_rate)
		FROM vw_update_summary
		WHERE snomed_validation_rate IS NOT NULL`).Scan(&avg)
	if err != nil {
		return nil, err
	}
	return floatPtr(avg), nil
}

func (s *Store) ListReleases(ctx context.Context, itemName string, limit int) ([]domain.Release, error) {
	query := `
		SELECT release_tracking_id, item_name, trud_item_number, release_id, release_date,
			detected_date, downloaded_date, imported_date, import_success
		FROM trud_releases`
	args := make([]any, 0, 2)
	if itemName != "" {
		query += " WHERE item_name = ?"
		args = append(args, itemName)
	}
	query += " ORDER BY detected_date DESC, release_tracking_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Release, 0)
	for rows.Next() {
		var (
			rel        domain.Release
			released   dbTime
			detected   dbTime
			downloaded dbTime
			imported   dbTime
			importOK   sql.NullBool
		)
		if err := rows.Scan(
			&rel.ReleaseTrackingID, &rel.ItemName, &rel.TRUDItemNumber, &rel.ReleaseID, &released,
			&detected, &downloaded, &imported, &importOK,
		); err != nil {
			return nil, err
		}
		rel.ReleaseDate = released.ptr()
		rel.DetectedDate = detected.Time
		rel.DownloadedDate = downloaded.ptr()
		rel.ImportedDate = imported.ptr()
		rel.ImportSuccess = boolPtr(importOK)
		out = append(out, rel)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (domain.Summary, error) {
	var (
		sum           domain.Summary
		start         dbTime
		end           dbTime
		durFormatted  sql.NullString
		snomedSuccess sql.NullBool
		snomedNew     sql.NullBool
		snomedVersion sql.NullString
		concepts      sql.NullInt64
		descriptions  sql.NullInt64
		dmdSuccess    sql.NullBool
		dmdNew        sql.NullBool
		dmdVersion    sql.NullString
		vmps          sql.NullInt64
		amps          sql.NullInt64
		xmlRate       sql.NullFloat64
		snomedRate    sql.NullFloat64
	)
	err := row.Scan(
		&sum.RunID, &start, &end, &durFormatted, &sum.OverallSuccess,
		&sum.UpdatesFound, &sum.ServerName, &sum.WhatIfMode,
		&snomedSuccess, &snomedNew, &snomedVersion, &concepts, &descriptions,
		&dmdSuccess, &dmdNew, &dmdVersion, &vmps, &amps,
		&xmlRate, &snomedRate, &sum.ErrorCount,
	)
	if err != nil {
		return domain.Summary{}, err
	}
	sum.StartTime = start.Time
	sum.EndTime = end.ptr()
	sum.DurationFormatted = stringPtr(durFormatted)
	sum.SnomedSuccess = boolPtr(snomedSuccess)
	sum.SnomedNewRelease = boolPtr(snomedNew)
	sum.SnomedVersion = stringPtr(snomedVersion)
	sum.ConceptCount = int64Ptr(concepts)
	sum.DescriptionCount = int64Ptr(descriptions)
	sum.DmdSuccess = boolPtr(dmdSuccess)
	sum.DmdNewRelease = boolPtr(dmdNew)
	sum.DmdVersion = stringPtr(dmdVersion)
	sum.VMPCount = intPtr(vmps)
	sum.AMPCount = intPtr(amps)
	sum.XMLValidationRate = floatPtr(xmlRate)
	sum.SnomedValidationRate = floatPtr(snomedRate)
	return sum, nil
}
