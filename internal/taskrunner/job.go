package taskrunner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"magic-workflow/internal/appcore"
)

type job struct {
	req    appcore.JobRequest
	ctx    context.Context
	cancel context.CancelFunc
	detach func() bool

	events chan appcore.JobEvent
	result chan appcore.JobResult

	mu   sync.Mutex
	done bool
}

var _ appcore.JobHandle = (*job)(nil)

// newJob derives the job context from parent and also cancels it when the
// runner context ends.
func newJob(runnerCtx, parent context.Context, req appcore.JobRequest) *job {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &job{
		req:    req,
		ctx:    ctx,
		cancel: cancel,
		detach: context.AfterFunc(runnerCtx, cancel),
		events: make(chan appcore.JobEvent, eventBuffer),
		result: make(chan appcore.JobResult, 1),
	}
}

func (j *job) ID() string {
	return j.req.ID
}

func (j *job) Events() <-chan appcore.JobEvent {
	return j.events
}

func (j *job) Result() <-chan appcore.JobResult {
	return j.result
}

func (j *job) Cancel() error {
	j.cancel()
	return nil
}

// emit never blocks; a subscriber that falls behind loses events, not the
// result.
func (j *job) emit(ev appcore.JobEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		return
	}
	ev.JobID = j.req.ID
	ev.Name = j.req.Name
	ev.ProjectID = j.req.ProjectID
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	select {
	case j.events <- ev:
	default:
	}
}

func (j *job) report(p appcore.JobProgress) {
	if p.Stage == 0 {
		p.Stage = appcore.JobStageProcessing
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	if p.Percent == 0 && p.Total > 0 {
		p.Percent = float64(p.Current) * 100 / float64(p.Total)
	}
	j.emit(appcore.JobEvent{Stage: p.Stage, Progress: &p, Message: p.Message})
}

func (j *job) run() (output any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", j.req.ID, rec)
		}
	}()
	return j.req.Run(j.ctx, j.report)
}

func (j *job) finish(res appcore.JobResult) {
	res.JobID = j.req.ID
	res.FinishedAt = time.Now()
	j.emit(appcore.JobEvent{Stage: res.Stage, Err: res.Err})

	j.mu.Lock()
	if j.done {
		j.mu.Unlock()
		return
	}
	j.done = true
	close(j.events)
	j.mu.Unlock()

	j.result <- res
	j.detach()
	j.cancel()
}
