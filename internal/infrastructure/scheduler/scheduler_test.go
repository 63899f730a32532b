package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJob struct {
	name  string
	runs  atomic.Int32
	block chan struct{}
	err   error
}

func (j *testJob) Name() string        { return j.name }
func (j *testJob) Description() string { return "test job " + j.name }

func (j *testJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

type observed struct {
	mu   sync.Mutex
	jobs []string
	errs []error
}

func (o *observed) ObserveJob(job string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, job)
	o.errs = append(o.errs, err)
}

func newTestScheduler(rec Recorder) *Scheduler {
	cfg := DefaultConfig()
	cfg.Tick = 5 * time.Millisecond
	cfg.Recorder = rec
	return New(cfg)
}

func TestRegister(t *testing.T) {
	s := newTestScheduler(nil)
	job := &testJob{name: "a"}

	require.NoError(t, s.Register(job, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(job, Every(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&testJob{name: "b"}, nil), ErrNilSchedule)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, "@every 1m0s", infos[0].Schedule)
}

func TestScheduler_RunsJobsIndependently(t *testing.T) {
	s := newTestScheduler(nil)
	fast := &testJob{name: "fast"}
	slow := &testJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(fast, Every(10*time.Millisecond), RunImmediately()))
	require.NoError(t, s.Register(slow, Every(10*time.Millisecond), RunImmediately()))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return fast.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), slow.runs.Load(), "a running job must not start again")
	close(slow.block)
	assert.Eventually(t, func() bool { return slow.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestScheduler_StopCancelsAndWaits(t *testing.T) {
	s := newTestScheduler(nil)
	job := &testJob{name: "blocked", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Hour), RunImmediately()))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	info := s.ListJobs()[0]
	assert.False(t, info.Running)
	require.NotNil(t, info.LastResult)
	assert.ErrorIs(t, info.LastResult.Error, context.Canceled)

	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_StartTwice(t *testing.T) {
	s := newTestScheduler(nil)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
}

func TestRunNow(t *testing.T) {
	rec := &observed{}
	s := newTestScheduler(rec)
	boom := errors.New("boom")
	require.NoError(t, s.Register(&testJob{name: "ok"}, Every(time.Hour)))
	require.NoError(t, s.Register(&testJob{name: "failing", err: boom}, Every(time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.NotEmpty(t, res.RunID)

	_, err = s.RunNow(context.Background(), "failing")
	assert.ErrorIs(t, err, boom)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.Equal(t, []string{"ok", "failing"}, rec.jobs)
	assert.Equal(t, []error{nil, boom}, rec.errs)

	infos := s.ListJobs()
	assert.Equal(t, "failing", infos[0].Name)
	assert.Equal(t, int64(1), infos[0].FailCount)
}

func TestRunNow_RefusesRunningJob(t *testing.T) {
	s := newTestScheduler(nil)
	job := &testJob{name: "blocked", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RunNow(context.Background(), "blocked")
	}()
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	_, err := s.RunNow(context.Background(), "blocked")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(job.block)
	<-done
}

type panicJob struct{}

func (panicJob) Name() string              { return "panic" }
func (panicJob) Description() string       { return "" }
func (panicJob) Run(context.Context) error { panic("kaboom") }

func TestRunNow_RecoversPanic(t *testing.T) {
	s := newTestScheduler(nil)
	require.NoError(t, s.Register(panicJob{}, Every(time.Hour)))
	_, err := s.RunNow(context.Background(), "panic")
	assert.ErrorContains(t, err, "kaboom")
}
