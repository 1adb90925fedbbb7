package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
	"github.com/mmrzaf/termwatch/internal/domain"
	"github.com/mmrzaf/termwatch/internal/infra/repos/runs"
	"github.com/mmrzaf/termwatch/internal/timeutil"
)

const (
	SnomedItemName = "SNOMED CT UK Monolith Edition"
	DmdItemName    = "NHSBSA dm+d"

	snomedTRUDItem = 1799
	dmdTRUDItem    = 24
)

type Options struct {
	Runs        int
	Interval    time.Duration
	FailureRate float64
	Now         time.Time
}

type Result struct {
	Runs     int `json:"runs" yaml:"runs"`
	Steps    int `json:"steps" yaml:"steps"`
	Errors   int `json:"errors" yaml:"errors"`
	Releases int `json:"releases" yaml:"releases"`
}

// Generator writes plausible pipeline history so the dashboard has
// something to show in development.
type Generator struct {
	rec runs.Recorder
	rng *rand.Rand
}

func NewGenerator(rec runs.Recorder, seed int64) *Generator {
	return &Generator{rec: rec, rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Seed(ctx context.Context, opts Options) (*Result, error) {
	if opts.Runs <= 0 {
		return nil, fmt.Errorf("%w: runs must be positive", domain.ErrInvalidRequest)
	}
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	server := strings.ToUpper(faker.Word()) + "-TERM01"
	res := &Result{}
	snomedMajor, dmdWeek := 38, 1

	for i := opts.Runs - 1; i >= 0; i-- {
		start := opts.Now.Add(-time.Duration(i) * opts.Interval).Truncate(time.Second)
		newSnomed := g.rng.Intn(4) == 0
		newDmd := g.rng.Intn(2) == 0
		if newSnomed {
			snomedMajor++
		}
		if newDmd {
			dmdWeek++
		}
		whatIf := g.rng.Intn(10) == 0

		run := &domain.Run{
			RunID:      uuid.New(),
			StartTime:  start,
			ServerName: server,
			WhatIfMode: whatIf,
			ForcedRun:  g.rng.Intn(15) == 0,
			CreatedAt:  start,
		}
		if err := g.rec.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		res.Runs++

		failed := g.rng.Float64() < opts.FailureRate
		snomedVersion := fmt.Sprintf("%d.0.0_%s000001", snomedMajor, start.Format("20060102"))
		dmdVersion := fmt.Sprintf("%d.%d.0_%s000001", 8+dmdWeek/52, dmdWeek%52, start.Format("20060102"))

		cursor := start
		steps := append(g.snomedSteps(run.RunID, newSnomed, snomedVersion), g.dmdSteps(run.RunID, newDmd, dmdVersion)...)
		failAt := -1
		if failed {
			failAt = g.rng.Intn(len(steps))
		}
		for idx := range steps {
			st := &steps[idx]
			secs := 5 + g.rng.Intn(600)
			stepStart := cursor
			st.StartTime = &stepStart
			st.DurationSeconds = &secs
			formatted := timeutil.FormatClock(time.Duration(secs) * time.Second)
			st.DurationFormatted = &formatted
			st.Success = idx != failAt
			cursor = cursor.Add(time.Duration(secs) * time.Second)
			if err := g.rec.AddStep(ctx, st); err != nil {
				return nil, fmt.Errorf("add step: %w", err)
			}
			res.Steps++

			if !st.Success {
				source := string(st.TerminologyType) + "/" + st.StepName
				e := &domain.RunError{
					RunID:          run.RunID,
					ErrorSource:    &source,
					ErrorMessage:   strings.TrimSuffix(faker.Sentence(), "."),
					ErrorTimestamp: cursor,
				}
				if err := g.rec.AddError(ctx, e); err != nil {
					return nil, fmt.Errorf("add error: %w", err)
				}
				res.Errors++
			}
		}

		if newSnomed {
			if err := g.release(ctx, SnomedItemName, snomedTRUDItem, snomedVersion, start, cursor, !failed && !whatIf); err != nil {
				return nil, err
			}
			res.Releases++
		}
		if newDmd {
			if err := g.release(ctx, DmdItemName, dmdTRUDItem, dmdVersion, start, cursor, !failed && !whatIf); err != nil {
				return nil, err
			}
			res.Releases++
		}

		end := cursor
		secs := int(end.Sub(start).Seconds())
		formatted := timeutil.FormatClock(end.Sub(start))
		logPath := fmt.Sprintf("/var/log/terminology-update/%s_%s.log", start.Format("20060102_150405"), faker.Word())
		run.EndTime = &end
		run.DurationSeconds = &secs
		run.DurationFormatted = &formatted
		run.Success = !failed
		run.LogFilePath = &logPath
		if newSnomed {
			run.UpdatesFound++
		}
		if newDmd {
			run.UpdatesFound++
		}
		if err := g.rec.FinishRun(ctx, run); err != nil {
			return nil, fmt.Errorf("finish run: %w", err)
		}
	}
	return res, nil
}

func (g *Generator) snomedSteps(runID uuid.UUID, isNew bool, version string) []domain.Step {
	concepts := int64(350_000 + g.rng.Intn(20_000))
	descriptions := concepts*3 + int64(g.rng.Intn(5_000))
	steps := []domain.Step{
		{RunID: runID, TerminologyType: domain.TerminologySNOMED, StepName: "Check TRUD", StepOrder: 1, NewRelease: &isNew, ReleaseVersion: &version},
	}
	if !isNew {
		return steps
	}
	details := fmt.Sprintf("Imported %d concepts, %d descriptions", concepts, descriptions)
	return append(steps,
		domain.Step{RunID: runID, TerminologyType: domain.TerminologySNOMED, StepName: "Download", StepOrder: 2},
		domain.Step{RunID: runID, TerminologyType: domain.TerminologySNOMED, StepName: "Import", StepOrder: 3, Details: &details, ConceptCount: &concepts, DescriptionCount: &descriptions},
	)
}

func (g *Generator) dmdSteps(runID uuid.UUID, isNew bool, version string) []domain.Step {
	steps := []domain.Step{
		{RunID: runID, TerminologyType: domain.TerminologyDMD, StepName: "Check TRUD", StepOrder: 1, NewRelease: &isNew, ReleaseVersion: &version},
	}
	if !isNew {
		return steps
	}
	vmps := 20_000 + g.rng.Intn(2_000)
	amps := 150_000 + g.rng.Intn(10_000)
	xmlRate := float64(9_900+g.rng.Intn(101)) / 10_000
	snomedRate := float64(9_500+g.rng.Intn(501)) / 10_000
	details := fmt.Sprintf("VMP %d, AMP %d", vmps, amps)
	return append(steps,
		domain.Step{RunID: runID, TerminologyType: domain.TerminologyDMD, StepName: "Download", StepOrder: 2},
		domain.Step{RunID: runID, TerminologyType: domain.TerminologyDMD, StepName: "Import", StepOrder: 3, Details: &details, VMPCount: &vmps, AMPCount: &amps},
		domain.Step{RunID: runID, TerminologyType: domain.TerminologyDMD, StepName: "Validate", StepOrder: 4, XMLValidationRate: &xmlRate, SnomedValidationRate: &snomedRate},
	)
}

func (g *Generator) release(ctx context.Context, item string, trudItem int, version string, detected, finished time.Time, imported bool) error {
	releaseDate := detected.Truncate(24 * time.Hour).Add(-time.Duration(g.rng.Intn(5)) * 24 * time.Hour)
	rel := &domain.Release{
		ItemName:       item,
		TRUDItemNumber: trudItem,
		ReleaseID:      version,
		ReleaseDate:    &releaseDate,
		DetectedDate:   detected,
	}
	if err := g.rec.SaveRelease(ctx, rel); err != nil {
		return fmt.Errorf("save release: %w", err)
	}

	downloaded := detected.Add(time.Duration(1+g.rng.Intn(10)) * time.Minute)
	rel.DownloadedDate = &downloaded
	rel.ImportSuccess = &imported
	if imported {
		rel.ImportedDate = &finished
	}
	if err := g.rec.SaveRelease(ctx, rel); err != nil {
		return fmt.Errorf("update release: %w", err)
	}
	return nil
}
