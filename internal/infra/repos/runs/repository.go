package runs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmrzaf/termwatch/internal/domain"
)

// Repository is the read side of the reporting DB. Every list method returns
// rows in the order the dashboard shows them.
type Repository interface {
	Ping(ctx context.Context) error
	RunCounts(ctx context.Context) (domain.RunCounts, error)
	ListSummaries(ctx context.Context, limit, offset int) ([]domain.Summary, error)
	LastSuccessfulStart(ctx context.Context) (*time.Time, error)
	LastRunStart(ctx context.Context) (*time.Time, error)
	GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListSteps(ctx context.Context, runID uuid.UUID) ([]domain.Step, error)
	ListErrors(ctx context.Context, runID uuid.UUID) ([]domain.RunError, error)
	RecentErrors(ctx context.Context, limit int) ([]domain.RunError, error)
	CountErrors(ctx context.Context) (int, error)
	AverageSnomedValidationRate(ctx context.Context) (*float64, error)
	ListReleases(ctx context.Context, itemName string, limit int) ([]domain.Release, error)
}

// Recorder is the write side owned by the update pipeline. The reporting
// service never holds one.
type Recorder interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	FinishRun(ctx context.Context, run *domain.Run) error
	AddStep(ctx context.Context, step *domain.Step) error
	AddError(ctx context.Context, e *domain.RunError) error
	SaveRelease(ctx context.Context, rel *domain.Release) error
}
