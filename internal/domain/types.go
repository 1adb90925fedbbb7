package domain

import (
	"time"

	"github.com/google/uuid"
)

type TerminologyType string

const (
	TerminologySNOMED TerminologyType = "SNOMED"
	TerminologyDMD    TerminologyType = "DMD"
)

// Run is one execution of the terminology update pipeline.
type Run struct {
	RunID             uuid.UUID  `json:"runId" yaml:"run_id"`
	StartTime         time.Time  `json:"startTime" yaml:"start_time"`
	EndTime           *time.Time `json:"endTime,omitempty" yaml:"end_time,omitempty"`
	DurationSeconds   *int       `json:"durationSeconds,omitempty" yaml:"duration_seconds,omitempty"`
	DurationFormatted *string    `json:"durationFormatted,omitempty" yaml:"duration_formatted,omitempty"`
	Success           bool       `json:"success" yaml:"success"`
	UpdatesFound      int        `json:"updatesFound" yaml:"updates_found"`
	ServerName        string     `json:"serverName" yaml:"server_name"`
	LogFilePath       *string    `json:"logFilePath,omitempty" yaml:"log_file_path,omitempty"`
	WhatIfMode        bool       `json:"whatIfMode" yaml:"whatif_mode"`
	ForcedRun         bool       `json:"forcedRun" yaml:"forced_run"`
	CreatedAt         time.Time  `json:"createdAt" yaml:"created_at"`
}

// Step is one unit of work within a run, scoped to a single terminology.
// The outcome fields are only set on the steps that produce them (the import
// step carries counts, the validation step carries rates).
type Step struct {
	StepID            int64           `json:"stepId" yaml:"step_id"`
	RunID             uuid.UUID       `json:"runId" yaml:"run_id"`
	TerminologyType   TerminologyType `json:"terminologyType" yaml:"terminology_type"`
	StepName          string          `json:"stepName" yaml:"step_name"`
	StepOrder         int             `json:"stepOrder" yaml:"step_order"`
	Success           bool            `json:"success" yaml:"success"`
	Details           *string         `json:"details,omitempty" yaml:"details,omitempty"`
	StartTime         *time.Time      `json:"startTime,omitempty" yaml:"start_time,omitempty"`
	DurationSeconds   *int            `json:"durationSeconds,omitempty" yaml:"duration_seconds,omitempty"`
	DurationFormatted *string         `json:"durationFormatted,omitempty" yaml:"duration_formatted,omitempty"`

	ReleaseVersion       *string  `json:"releaseVersion,omitempty" yaml:"release_version,omitempty"`
	NewRelease           *bool    `json:"newRelease,omitempty" yaml:"new_release,omitempty"`
	ConceptCount         *int64   `json:"conceptCount,omitempty" yaml:"concept_count,omitempty"`
	DescriptionCount     *int64   `json:"descriptionCount,omitempty" yaml:"description_count,omitempty"`
	VMPCount             *int     `json:"vmpCount,omitempty" yaml:"vmp_count,omitempty"`
	AMPCount             *int     `json:"ampCount,omitempty" yaml:"amp_count,omitempty"`
	XMLValidationRate    *float64 `json:"xmlValidationRate,omitempty" yaml:"xml_validation_rate,omitempty"`
	SnomedValidationRate *float64 `json:"snomedValidationRate,omitempty" yaml:"snomed_validation_rate,omitempty"`
}

type RunError struct {
	ErrorID        int64     `json:"errorId" yaml:"error_id"`
	RunID          uuid.UUID `json:"runId" yaml:"run_id"`
	ErrorSource    *string   `json:"errorSource,omitempty" yaml:"error_source,omitempty"`
	ErrorMessage   string    `json:"errorMessage" yaml:"error_message"`
	ErrorTimestamp time.Time `json:"errorTimestamp" yaml:"error_timestamp"`
}

// Release is a detected upstream TRUD distribution, tracked from detection
// through download and import.
type Release struct {
	ReleaseTrackingID int64      `json:"releaseTrackingId" yaml:"release_tracking_id"`
	ItemName          string     `json:"itemName" yaml:"item_name"`
	TRUDItemNumber    int        `json:"trudItemNumber" yaml:"trud_item_number"`
	ReleaseID         string     `json:"releaseId" yaml:"release_id"`
	ReleaseDate       *time.Time `json:"releaseDate,omitempty" yaml:"release_date,omitempty"`
	DetectedDate      time.Time  `json:"detectedDate" yaml:"detected_date"`
	DownloadedDate    *time.Time `json:"downloadedDate,omitempty" yaml:"downloaded_date,omitempty"`
	ImportedDate      *time.Time `json:"importedDate,omitempty" yaml:"imported_date,omitempty"`
	ImportSuccess     *bool      `json:"importSuccess,omitempty" yaml:"import_success,omitempty"`
}

// Summary is one row of the vw_update_summary projection. Per-terminology
// fields stay nil when the run has no step of that terminology.
type Summary struct {
	RunID             uuid.UUID  `json:"runId" yaml:"run_id"`
	StartTime         time.Time  `json:"startTime" yaml:"start_time"`
	EndTime           *time.Time `json:"endTime" yaml:"end_time"`
	DurationFormatted *string    `json:"durationFormatted" yaml:"duration_formatted"`
	OverallSuccess    bool       `json:"overallSuccess" yaml:"overall_success"`
	UpdatesFound      int        `json:"updatesFound" yaml:"updates_found"`
	ServerName        string     `json:"serverName" yaml:"server_name"`
	WhatIfMode        bool       `json:"whatIfMode" yaml:"whatif_mode"`

	SnomedSuccess    *bool   `json:"snomedSuccess" yaml:"snomed_success"`
	SnomedNewRelease *bool   `json:"snomedNewRelease" yaml:"snomed_new_release"`
	SnomedVersion    *string `json:"snomedVersion" yaml:"snomed_version"`
	ConceptCount     *int64  `json:"conceptCount" yaml:"concept_count"`
	DescriptionCount *int64  `json:"descriptionCount" yaml:"description_count"`

	DmdSuccess           *bool    `json:"dmdSuccess" yaml:"dmd_success"`
	DmdNewRelease        *bool    `json:"dmdNewRelease" yaml:"dmd_new_release"`
	DmdVersion           *string  `json:"dmdVersion" yaml:"dmd_version"`
	VMPCount             *int     `json:"vmpCount" yaml:"vmp_count"`
	AMPCount             *int     `json:"ampCount" yaml:"amp_count"`
	XMLValidationRate    *float64 `json:"xmlValidationRate" yaml:"xml_validation_rate"`
	SnomedValidationRate *float64 `json:"snomedValidationRate" yaml:"snomed_validation_rate"`

	ErrorCount int `json:"errorCount" yaml:"error_count"`
}

// RunCounts is read in a single statement so Successful never exceeds Total.
type RunCounts struct {
	Total      int
	Successful int
}

type Dashboard struct {
	LatestRun            *Summary   `json:"latestRun" yaml:"latest_run"`
	RecentRuns           []Summary  `json:"recentRuns" yaml:"recent_runs"`
	TotalRuns            int        `json:"totalRuns" yaml:"total_runs"`
	SuccessfulRuns       int        `json:"successfulRuns" yaml:"successful_runs"`
	FailedRuns           int        `json:"failedRuns" yaml:"failed_runs"`
	LastSuccessfulUpdate *time.Time `json:"lastSuccessfulUpdate" yaml:"last_successful_update"`
	Degraded             bool       `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	Warnings             []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type RunPage struct {
	Runs     []Summary `json:"runs" yaml:"runs"`
	Total    int       `json:"total" yaml:"total"`
	Page     int       `json:"page" yaml:"page"`
	PageSize int       `json:"pageSize" yaml:"page_size"`
}

type RunDetail struct {
	Run    *Run       `json:"run" yaml:"run"`
	Steps  []Step     `json:"steps" yaml:"steps"`
	Errors []RunError `json:"errors" yaml:"errors"`
}

type Stats struct {
	TotalRuns             int        `json:"totalRuns" yaml:"total_runs"`
	SuccessfulRuns        int        `json:"successfulRuns" yaml:"successful_runs"`
	FailedRuns            int        `json:"failedRuns" yaml:"failed_runs"`
	TotalErrors           int        `json:"totalErrors" yaml:"total_errors"`
	AverageValidationRate float64    `json:"averageValidationRate" yaml:"average_validation_rate"`
	LastRun               *time.Time `json:"lastRun" yaml:"last_run"`
	Degraded              bool       `json:"degraded,omitempty" yaml:"degraded,omitempty"`
	Warnings              []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
