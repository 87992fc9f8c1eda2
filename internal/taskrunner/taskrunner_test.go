package taskrunner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magic-workflow/internal/appcore"
	apperrors "magic-workflow/pkg/errors"
)

func mutation(name string, fn func(ctx context.Context) (any, error)) appcore.JobRequest {
	return appcore.JobRequest{
		Kind: appcore.JobKindMutation,
		Name: name,
		Run: func(ctx context.Context, _ appcore.ProgressFunc) (any, error) {
			return fn(ctx)
		},
	}
}

func waitResult(t *testing.T, h appcore.JobHandle) appcore.JobResult {
	t.Helper()
	select {
	case res := <-h.Result():
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("job %s did not finish", h.ID())
		return appcore.JobResult{}
	}
}

func TestMutationsRunOneAtATimeInOrder(t *testing.T) {
	r := New(Config{BackgroundWorkers: 4})
	defer r.Close()

	var active, maxActive atomic.Int32
	var mu sync.Mutex
	var order []int

	handles := make([]appcore.JobHandle, 0, 8)
	for i := 0; i < 8; i++ {
		i := i
		h, err := r.Submit(context.Background(), mutation("step", func(ctx context.Context) (any, error) {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}))
		require.NoError(t, err)
		handles = append(handles, h)
	}

	for i, h := range handles {
		res := waitResult(t, h)
		assert.Equal(t, appcore.JobStageSucceeded, res.Stage)
		assert.Equal(t, i, res.Output)
	}
	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestBackgroundRunsAlongsideMutation(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()

	release := make(chan struct{})
	blocking, err := r.Submit(context.Background(), mutation("slow", func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	}))
	require.NoError(t, err)

	bg, err := r.Submit(context.Background(), appcore.JobRequest{
		Kind: appcore.JobKindBackground,
		Name: "titles",
		Run: func(ctx context.Context, report appcore.ProgressFunc) (any, error) {
			return "done", nil
		},
	})
	require.NoError(t, err)

	res := waitResult(t, bg)
	assert.Equal(t, "done", res.Output)

	close(release)
	assert.Equal(t, appcore.JobStageSucceeded, waitResult(t, blocking).Stage)
}

func TestQueueFull(t *testing.T) {
	r := New(Config{QueueSize: 1, BackgroundWorkers: 1})
	defer r.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	first, err := r.Submit(context.Background(), mutation("hold", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	}))
	require.NoError(t, err)
	<-started

	second, err := r.Submit(context.Background(), mutation("queued", func(ctx context.Context) (any, error) { return nil, nil }))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Pending())
	assert.Equal(t, 1, r.Running())

	_, err = r.Submit(context.Background(), mutation("overflow", func(ctx context.Context) (any, error) { return nil, nil }))
	assert.True(t, apperrors.Is(err, apperrors.CodeQueueFull))

	close(release)
	waitResult(t, first)
	waitResult(t, second)
}

func TestCancelBeforeStart(t *testing.T) {
	r := New(Config{QueueSize: 4})
	defer r.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	_, err := r.Submit(context.Background(), mutation("hold", func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	}))
	require.NoError(t, err)
	<-started

	ran := false
	h, err := r.Submit(context.Background(), mutation("never", func(ctx context.Context) (any, error) {
		ran = true
		return nil, nil
	}))
	require.NoError(t, err)
	require.NoError(t, h.Cancel())
	close(release)

	res := waitResult(t, h)
	assert.Equal(t, appcore.JobStageCanceled, res.Stage)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.False(t, ran)
}

func TestFailureAndPanic(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()

	boom := errors.New("boom")
	h, err := r.Submit(context.Background(), mutation("fail", func(ctx context.Context) (any, error) { return nil, boom }))
	require.NoError(t, err)
	res := waitResult(t, h)
	assert.Equal(t, appcore.JobStageFailed, res.Stage)
	assert.ErrorIs(t, res.Err, boom)

	h, err = r.Submit(context.Background(), mutation("panic", func(ctx context.Context) (any, error) { panic("bad index") }))
	require.NoError(t, err)
	res = waitResult(t, h)
	assert.Equal(t, appcore.JobStageFailed, res.Stage)
	assert.Contains(t, res.Err.Error(), "bad index")

	// the supervisor survives a panicking job
	h, err = r.Submit(context.Background(), mutation("after", func(ctx context.Context) (any, error) { return 1, nil }))
	require.NoError(t, err)
	assert.Equal(t, appcore.JobStageSucceeded, waitResult(t, h).Stage)
}

func TestEventsAndProgress(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()

	h, err := r.Submit(context.Background(), appcore.JobRequest{
		Name:      "smart_split",
		ProjectID: "p1",
		Run: func(ctx context.Context, report appcore.ProgressFunc) (any, error) {
			report(appcore.JobProgress{Current: 1, Total: 4, Message: "piece 1"})
			return nil, nil
		},
	})
	require.NoError(t, err)
	res := waitResult(t, h)
	require.NoError(t, res.Err)

	var stages []appcore.JobStage
	var progress *appcore.JobProgress
	for ev := range h.Events() {
		assert.Equal(t, h.ID(), ev.JobID)
		assert.Equal(t, "p1", ev.ProjectID)
		stages = append(stages, ev.Stage)
		if ev.Progress != nil {
			progress = ev.Progress
		}
	}
	assert.Equal(t, []appcore.JobStage{
		appcore.JobStageQueued,
		appcore.JobStageProcessing,
		appcore.JobStageProcessing,
		appcore.JobStageSucceeded,
	}, stages)
	require.NotNil(t, progress)
	assert.InDelta(t, 25.0, progress.Percent, 1e-9)
}

func TestSubmitValidation(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()

	_, err := r.Submit(context.Background(), appcore.JobRequest{Name: "empty"})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidParams))

	h, err := r.Submit(context.Background(), mutation("id", func(ctx context.Context) (any, error) { return nil, nil }))
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID())
	waitResult(t, h)
}

func TestCloseRejectsAndCancels(t *testing.T) {
	r := New(Config{QueueSize: 4})

	started := make(chan struct{})
	running, err := r.Submit(context.Background(), mutation("running", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	require.NoError(t, err)
	<-started
	queued, err := r.Submit(context.Background(), mutation("queued", func(ctx context.Context) (any, error) { return nil, nil }))
	require.NoError(t, err)

	r.Close()
	r.Close()

	assert.Equal(t, appcore.JobStageCanceled, waitResult(t, running).Stage)
	assert.Equal(t, appcore.JobStageCanceled, waitResult(t, queued).Stage)

	_, err = r.Submit(context.Background(), mutation("late", func(ctx context.Context) (any, error) { return nil, nil }))
	assert.True(t, apperrors.Is(err, apperrors.CodeRunnerStopped))
}

func TestAwait(t *testing.T) {
	r := New(DefaultConfig())
	defer r.Close()

	h, err := r.Submit(context.Background(), mutation("ok", func(ctx context.Context) (any, error) { return "x", nil }))
	require.NoError(t, err)
	res, err := Await(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, "x", res.Output)

	release := make(chan struct{})
	defer close(release)
	h, err = r.Submit(context.Background(), mutation("slow", func(ctx context.Context) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Await(ctx, h)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
