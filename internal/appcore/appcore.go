package appcore

import (
	"context"
	"time"
)

// JobKind decides which lane a job runs in. Mutations of scene collections
// run one at a time; background jobs run concurrently with them.
type JobKind uint8

const (
	JobKindMutation JobKind = iota + 1
	JobKindBackground
)

func (k JobKind) String() string {
	switch k {
	case JobKindMutation:
		return "mutation"
	case JobKindBackground:
		return "background"
	default:
		return "unknown"
	}
}

// ProgressFunc reports intermediate progress of a running job.
type ProgressFunc func(JobProgress)

// JobFunc is the work of one job. Its return value becomes JobResult.Output.
type JobFunc func(ctx context.Context, report ProgressFunc) (any, error)

type JobRequest struct {
	ID        string
	Kind      JobKind
	Name      string
	ProjectID string
	Args      map[string]any
	Metadata  map[string]string
	Run       JobFunc
}

type JobStage uint8

const (
	JobStageQueued JobStage = iota + 1
	JobStagePreparing
	JobStageProcessing
	JobStageFinalizing
	JobStageSucceeded
	JobStageFailed
	JobStageCanceled
)

func (s JobStage) String() string {
	switch s {
	case JobStageQueued:
		return "queued"
	case JobStagePreparing:
		return "preparing"
	case JobStageProcessing:
		return "processing"
	case JobStageFinalizing:
		return "finalizing"
	case JobStageSucceeded:
		return "succeeded"
	case JobStageFailed:
		return "failed"
	case JobStageCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func (s JobStage) IsTerminal() bool {
	return s == JobStageSucceeded || s == JobStageFailed || s == JobStageCanceled
}

type JobProgress struct {
	Stage     JobStage
	Current   int64
	Total     int64
	Percent   float64
	Message   string
	UpdatedAt time.Time
}

type JobEvent struct {
	JobID      string
	Name       string
	ProjectID  string
	Stage      JobStage
	Progress   *JobProgress
	Message    string
	Err        error
	OccurredAt time.Time
}

type JobResult struct {
	JobID      string
	Stage      JobStage
	Output     any
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

type JobHandle interface {
	ID() string
	Events() <-chan JobEvent
	Result() <-chan JobResult
	Cancel() error
}

type Runner interface {
	Submit(ctx context.Context, req JobRequest) (JobHandle, error)
}
