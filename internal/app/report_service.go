package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mmrzaf/termwatch/internal/domain"
	"github.com/mmrzaf/termwatch/internal/infra/repos/runs"
	"github.com/mmrzaf/termwatch/internal/logging"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardRecentRuns = 10
	releaseHistoryLimit = 50
)

// ReportService answers the dashboard's read queries. It keeps no state
// between calls and never writes.
type ReportService struct {
	repo   runs.Repository
	logger *logging.Logger
}

func NewReportService(repo runs.Repository, logger *logging.Logger) *ReportService {
	return &ReportService{repo: repo, logger: logger.WithComponent("report")}
}

func (s *ReportService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	var (
		recent      []domain.Summary
		counts      domain.RunCounts
		lastSuccess *time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		recent, err = s.repo.ListSummaries(gctx, dashboardRecentRuns, 0)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.repo.RunCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		lastSuccess, err = s.repo.LastSuccessfulStart(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.storeErr(ctx, "dashboard", err)
	}

	d := &domain.Dashboard{
		RecentRuns:           recent,
		TotalRuns:            counts.Total,
		SuccessfulRuns:       counts.Successful,
		FailedRuns:           counts.Total - counts.Successful,
		LastSuccessfulUpdate: lastSuccess,
	}
	if len(recent) > 0 {
		latest := recent[0]
		d.LatestRun = &latest
	}

	var warnings []string
	if len(recent) > counts.Total {
		warnings = append(warnings, fmt.Sprintf("summary projection returned %d rows but only %d runs are recorded", len(recent), counts.Total))
	}
	if counts.Successful > counts.Total {
		warnings = append(warnings, fmt.Sprintf("successful run count %d exceeds total %d", counts.Successful, counts.Total))
	}
	if counts.Successful > 0 && lastSuccess == nil {
		warnings = append(warnings, "successful runs counted but no successful start time found")
	}
	d.Degraded, d.Warnings = s.degraded("dashboard", warnings)
	return d, nil
}

func (s *ReportService) ListRuns(ctx context.Context, page, pageSize domain.PositiveInt) (*domain.RunPage, error) {
	if !page.Valid() || !pageSize.Valid() {
		return nil, fmt.Errorf("list runs: %w: page and pageSize are required", domain.ErrInvalidRequest)
	}
	if pageSize.Int() > domain.MaxPageSize {
		return nil, fmt.Errorf("list runs: %w: pageSize must be at most %d", domain.ErrInvalidRequest, domain.MaxPageSize)
	}
	if page.Int()-1 > math.MaxInt32/pageSize.Int() {
		return nil, fmt.Errorf("list runs: %w: page %d is out of range", domain.ErrInvalidRequest, page.Int())
	}
	offset := (page.Int() - 1) * pageSize.Int()

	var (
		summaries []domain.Summary
		counts    domain.RunCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summaries, err = s.repo.ListSummaries(gctx, pageSize.Int(), offset)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.repo.RunCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.storeErr(ctx, "list runs", err)
	}

	if offset+len(summaries) > counts.Total {
		s.degraded("list_runs", []string{fmt.Sprintf("page ends at row %d but only %d runs are recorded", offset+len(summaries), counts.Total)})
	}
	return &domain.RunPage{
		Runs:     summaries,
		Total:    counts.Total,
		Page:     page.Int(),
		PageSize: pageSize.Int(),
	}, nil
}

// RunDetail returns the run with its steps and errors. Steps and errors are
// only queried once the run is known to exist.
func (s *ReportService) RunDetail(ctx context.Context, id uuid.UUID) (*domain.RunDetail, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, s.storeErr(ctx, "run detail", err)
	}

	detail := &domain.RunDetail{Run: run}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		detail.Steps, err = s.repo.ListSteps(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		detail.Errors, err = s.repo.ListErrors(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.storeErr(ctx, "run detail", err)
	}
	return detail, nil
}

func (s *ReportService) LatestRun(ctx context.Context) (*domain.Summary, error) {
	list, err := s.repo.ListSummaries(ctx, 1, 0)
	if err != nil {
		return nil, s.storeErr(ctx, "latest run", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("latest run: %w", domain.ErrNotFound)
	}
	return &list[0], nil
}

// Releases lists the newest detected releases, optionally for one item name.
func (s *ReportService) Releases(ctx context.Context, itemName string) ([]domain.Release, error) {
	list, err := s.repo.ListReleases(ctx, itemName, releaseHistoryLimit)
	if err != nil {
		return nil, s.storeErr(ctx, "releases", err)
	}
	return list, nil
}

func (s *ReportService) RecentErrors(ctx context.Context, count domain.PositiveInt) ([]domain.RunError, error) {
	if !count.Valid() {
		return nil, fmt.Errorf("recent errors: %w: count is required", domain.ErrInvalidRequest)
	}
	if count.Int() > domain.MaxErrorCount {
		return nil, fmt.Errorf("recent errors: %w: count must be at most %d", domain.ErrInvalidRequest, domain.MaxErrorCount)
	}
	list, err := s.repo.RecentErrors(ctx, count.Int())
	if err != nil {
		return nil, s.storeErr(ctx, "recent errors", err)
	}
	return list, nil
}

func (s *ReportService) Stats(ctx context.Context) (*domain.Stats, error) {
	var (
		counts      domain.RunCounts
		totalErrors int
		avgRate     *float64
		lastRun     *time.Time
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts, err = s.repo.RunCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		totalErrors, err = s.repo.CountErrors(gctx)
		return err
	})
	g.Go(func() (err error) {
		avgRate, err = s.repo.AverageSnomedValidationRate(gctx)
		return err
	})
	g.Go(func() (err error) {
		lastRun, err = s.repo.LastRunStart(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.storeErr(ctx, "stats", err)
	}

	st := &domain.Stats{
		TotalRuns:      counts.Total,
		SuccessfulRuns: counts.Successful,
		FailedRuns:     counts.Total - counts.Successful,
		TotalErrors:    totalErrors,
		LastRun:        lastRun,
	}
	if avgRate != nil {
		st.AverageValidationRate = *avgRate
	}

	var warnings []string
	if counts.Total > 0 && lastRun == nil {
		warnings = append(warnings, fmt.Sprintf("%d runs counted but no latest start time found", counts.Total))
	}
	if counts.Total == 0 && totalErrors > 0 {
		warnings = append(warnings, fmt.Sprintf("%d errors recorded without any run", totalErrors))
	}
	st.Degraded, st.Warnings = s.degraded("stats", warnings)
	return st, nil
}

// Health pings the store.
func (s *ReportService) Health(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return s.storeErr(ctx, "health", err)
	}
	return nil
}

// storeErr classifies a repository failure. Not-found and invalid-request
// keep their kind, caller cancellation stays a context error and everything
// else becomes ErrUnavailable.
func (s *ReportService) storeErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidRequest):
		return fmt.Errorf("%s: %w", op, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	s.logger.Errorw("store.failed", map[string]any{"operation": op, "error": err.Error()})
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
}

func (s *ReportService) degraded(op string, warnings []string) (bool, []string) {
	if len(warnings) == 0 {
		return false, nil
	}
	s.logger.Warnw("report.degraded", map[string]any{"operation": op, "warnings": warnings})
	return true, warnings
}
