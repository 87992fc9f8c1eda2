package taskrunner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"magic-workflow/internal/appcore"
	"magic-workflow/log"
	apperrors "magic-workflow/pkg/errors"
)

const (
	defaultQueueSize         = 128
	defaultBackgroundWorkers = 2
	eventBuffer              = 16
)

var (
	ErrRunnerStopped = apperrors.ErrRunnerStopped
	ErrQueueFull     = apperrors.ErrQueueFull
)

var _ appcore.Runner = (*Runner)(nil)

// Config controls in-process task runner behavior.
type Config struct {
	QueueSize         int
	BackgroundWorkers int
}

// DefaultConfig suits a single local user.
func DefaultConfig() Config {
	return Config{
		QueueSize:         defaultQueueSize,
		BackgroundWorkers: defaultBackgroundWorkers,
	}
}

// Runner executes jobs with in-memory workers. Mutation jobs go through a
// single supervisor goroutine in submission order, so at most one of them
// runs at any time. Background jobs share a separate worker pool.
type Runner struct {
	config Config

	mutations  chan *job
	background chan *job
	ctx        context.Context
	cancel     context.CancelFunc

	workerWg sync.WaitGroup
	submitMu sync.RWMutex
	closed   atomic.Bool
	running  atomic.Int32
}

// New creates and starts a task runner.
func New(cfg Config) *Runner {
	cfg = normalizeConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	runner := &Runner{
		config:     cfg,
		mutations:  make(chan *job, cfg.QueueSize),
		background: make(chan *job, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	runner.workerWg.Add(1)
	go runner.worker("mutation", runner.mutations)
	for i := 0; i < cfg.BackgroundWorkers; i++ {
		runner.workerWg.Add(1)
		go runner.worker(fmt.Sprintf("background-%d", i+1), runner.background)
	}

	return runner
}

func normalizeConfig(cfg Config) Config {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.BackgroundWorkers <= 0 {
		cfg.BackgroundWorkers = defaultBackgroundWorkers
	}
	return cfg
}

// Submit queues req. The job is canceled when ctx ends, when its handle is
// canceled, or when the runner closes.
func (r *Runner) Submit(ctx context.Context, req appcore.JobRequest) (appcore.JobHandle, error) {
	if req.Run == nil {
		return nil, apperrors.Newf(apperrors.CodeInvalidParams, "Invalid parameters", "job %q has no work", req.Name)
	}
	if req.Kind == 0 {
		req.Kind = appcore.JobKindMutation
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	r.submitMu.RLock()
	defer r.submitMu.RUnlock()
	if r.closed.Load() {
		return nil, ErrRunnerStopped
	}

	j := newJob(r.ctx, ctx, req)
	queue := r.mutations
	if req.Kind == appcore.JobKindBackground {
		queue = r.background
	}

	j.emit(appcore.JobEvent{Stage: appcore.JobStageQueued})
	select {
	case queue <- j:
	default:
		j.detach()
		j.cancel()
		return nil, ErrQueueFull
	}

	log.GetLogger().Info("[TaskRunner] task submitted",
		zap.String("task_id", req.ID),
		zap.String("task_type", req.Kind.String()),
		zap.String("name", req.Name),
		zap.String("pid", req.ProjectID))
	return j, nil
}

func (r *Runner) worker(name string, queue <-chan *job) {
	defer r.workerWg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		select {
		case <-r.ctx.Done():
			return
		case j := <-queue:
			r.process(name, j)
		}
	}
}

func (r *Runner) process(workerName string, j *job) {
	started := time.Now()
	if err := j.ctx.Err(); err != nil {
		j.finish(appcore.JobResult{Stage: appcore.JobStageCanceled, StartedAt: started, Err: err})
		return
	}

	r.running.Add(1)
	defer r.running.Add(-1)

	j.emit(appcore.JobEvent{Stage: appcore.JobStageProcessing})
	output, err := j.run()

	result := appcore.JobResult{
		Stage:     appcore.JobStageSucceeded,
		Output:    output,
		StartedAt: started,
		Err:       err,
	}
	switch {
	case err != nil && j.ctx.Err() != nil:
		result.Stage = appcore.JobStageCanceled
	case err != nil:
		result.Stage = appcore.JobStageFailed
	}

	if err != nil {
		log.GetLogger().Error("[TaskRunner] task failed",
			zap.String("worker", workerName),
			zap.String("task_id", j.req.ID),
			zap.String("name", j.req.Name),
			zap.String("stage", result.Stage.String()),
			zap.Error(err))
	} else {
		log.GetLogger().Info("[TaskRunner] task completed",
			zap.String("worker", workerName),
			zap.String("task_id", j.req.ID),
			zap.String("name", j.req.Name),
			zap.Duration("elapsed", time.Since(started)))
	}
	j.finish(result)
}

// Close stops workers and rejects new tasks. Jobs still queued finish as
// canceled.
func (r *Runner) Close() {
	r.submitMu.Lock()
	if !r.closed.CompareAndSwap(false, true) {
		r.submitMu.Unlock()
		return
	}
	r.submitMu.Unlock()

	r.cancel()
	r.workerWg.Wait()

	for _, queue := range []chan *job{r.mutations, r.background} {
		for {
			select {
			case j := <-queue:
				j.finish(appcore.JobResult{Stage: appcore.JobStageCanceled, StartedAt: time.Now(), Err: ErrRunnerStopped})
				continue
			default:
			}
			break
		}
	}
}

// Pending returns the number of queued tasks waiting for workers.
func (r *Runner) Pending() int {
	return len(r.mutations) + len(r.background)
}

// Running returns the number of jobs currently executing.
func (r *Runner) Running() int {
	return int(r.running.Load())
}

// Await blocks until h finishes and returns its result. The job's own error
// is returned alongside the result.
func Await(ctx context.Context, h appcore.JobHandle) (appcore.JobResult, error) {
	select {
	case <-ctx.Done():
		_ = h.Cancel()
		return appcore.JobResult{JobID: h.ID(), Stage: appcore.JobStageCanceled, Err: ctx.Err()}, ctx.Err()
	case res := <-h.Result():
		return res, res.Err
	}
}
