// ABOUTME: Background analysis jobs: one at a time, uuid-tagged, cancellable
// ABOUTME: Progress fractions flow through the options callback
package analyzer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Job is one running or finished analysis.
type Job struct {
	id     string
	path   string
	cancel context.CancelFunc
	done   chan struct{}

	result *Waveform
	err    error
}

// ID returns the job's uuid.
func (j *Job) ID() string { return j.id }

// Path returns the file under analysis.
func (j *Job) Path() string { return j.path }

// Done closes when the job finishes, fails, or is cancelled.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel aborts the analysis. The job finishes with context.Canceled.
func (j *Job) Cancel() { j.cancel() }

// Wait blocks for completion and returns the result.
func (j *Job) Wait() (*Waveform, error) {
	<-j.done
	return j.result, j.err
}

// Runner executes analysis jobs on a background goroutine, one at a time.
type Runner struct {
	mu     sync.Mutex
	active *Job
}

// NewRunner creates an idle runner.
func NewRunner() *Runner { return &Runner{} }

// Active returns the running job, or nil.
func (r *Runner) Active() *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start launches the analysis of path. A second job while one runs is
// refused.
func (r *Runner) Start(path string, opts Options) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, fmt.Errorf("analyzer busy with %s", r.active.path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		id:     uuid.NewString(),
		path:   path,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.active = job

	go func() {
		defer cancel()
		job.result, job.err = AnalyzeContext(ctx, path, opts)

		r.mu.Lock()
		r.active = nil
		r.mu.Unlock()
		close(job.done)
	}()
	return job, nil
}
