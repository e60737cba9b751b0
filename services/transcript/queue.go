package transcript

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	yt "github.com/nijaru/yt-transcript/transcript"
)

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrQueueClosed = errors.New("job queue is closed")
)

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobNoCaption JobState = "no_captions"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// JobInfo is a snapshot of a job's progress.
type JobInfo struct {
	ID        string
	VideoID   string
	State     JobState
	StartedAt time.Time
	ErrorCode string
}

type prefetchJob struct {
	id         string
	videoID    string
	ctx        context.Context
	cancelFunc context.CancelFunc
	priority   int
	queuedAt   time.Time
	startedAt  time.Time
	state      JobState
	errorCode  string
}

type QueueConfig struct {
	Workers   int
	Capacity  int
	HungAfter time.Duration
	// Retained is how many finished jobs stay queryable.
	Retained int
}

// JobQueue resolves videos in the background so batch callers can return
// immediately.
type JobQueue struct {
	jobs         chan *prefetchJob
	priorityJobs chan *prefetchJob
	jobsByID     map[string]*prefetchJob
	finished     []string
	config       QueueConfig
	log          zerolog.Logger
	mu           sync.Mutex
	quit         chan struct{}
	closed       bool
	wg           sync.WaitGroup
}

func NewJobQueue(config QueueConfig, log zerolog.Logger) *JobQueue {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Capacity < 1 {
		config.Capacity = 1
	}
	if config.HungAfter <= 0 {
		config.HungAfter = 5 * time.Minute
	}
	if config.Retained <= 0 {
		config.Retained = config.Capacity * 4
	}
	return &JobQueue{
		jobs:         make(chan *prefetchJob, config.Capacity),
		priorityJobs: make(chan *prefetchJob, 5),
		jobsByID:     make(map[string]*prefetchJob),
		config:       config,
		log:          log.With().Str("component", "job_queue").Logger(),
		quit:         make(chan struct{}),
	}
}

// Start begins processing jobs with process, typically Service.Get.
func (q *JobQueue) Start(process func(context.Context, string) yt.Result) {
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i, process)
	}
	go q.monitorHungJobs()
}

// Submit queues videoID and returns the job ID.
func (q *JobQueue) Submit(videoID string, priority int) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &prefetchJob{
		id:         uuid.NewString(),
		videoID:    videoID,
		ctx:        ctx,
		cancelFunc: cancel,
		priority:   priority,
		queuedAt:   time.Now(),
		state:      JobQueued,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		cancel()
		return "", ErrQueueClosed
	}

	queued := false
	if priority > 0 {
		select {
		case q.priorityJobs <- job:
			queued = true
		default:
		}
	}
	if !queued {
		select {
		case q.jobs <- job:
		default:
			cancel()
			return "", ErrQueueFull
		}
	}

	q.jobsByID[job.id] = job
	return job.id, nil
}

// Cancel stops a queued or running job.
func (q *JobQueue) Cancel(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, exists := q.jobsByID[jobID]
	if !exists || isTerminal(job.state) {
		return false
	}
	job.cancelFunc()
	return true
}

func (q *JobQueue) Status(jobID string) (JobInfo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, exists := q.jobsByID[jobID]
	if !exists {
		return JobInfo{}, false
	}
	return JobInfo{
		ID:        job.id,
		VideoID:   job.videoID,
		State:     job.state,
		StartedAt: job.startedAt,
		ErrorCode: job.errorCode,
	}, true
}

func (q *JobQueue) worker(id int, process func(context.Context, string) yt.Result) {
	defer q.wg.Done()
	log := q.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Starting worker")

	for {
		var job *prefetchJob
		select {
		case <-q.quit:
			log.Debug().Msg("Worker shutting down")
			return
		case job = <-q.priorityJobs:
		default:
			select {
			case <-q.quit:
				log.Debug().Msg("Worker shutting down")
				return
			case job = <-q.priorityJobs:
			case job = <-q.jobs:
			}
		}

		q.run(log, job, process)
	}
}

func (q *JobQueue) run(log zerolog.Logger, job *prefetchJob, process func(context.Context, string) yt.Result) {
	jlog := log.With().Str("job_id", job.id).Str("video_id", job.videoID).Logger()

	q.mu.Lock()
	if job.ctx.Err() != nil {
		q.finishLocked(job, JobCancelled, "")
		q.mu.Unlock()
		jlog.Info().Msg("Skipping cancelled job")
		return
	}
	job.state = JobRunning
	job.startedAt = time.Now()
	q.mu.Unlock()

	res := process(job.ctx, job.videoID)
	duration := time.Since(job.startedAt)

	state, code := JobSucceeded, ""
	switch {
	case job.ctx.Err() != nil:
		state = JobCancelled
	case res.Err != nil:
		state, code = JobFailed, res.Err.Kind.String()
	case res.NoCaptions:
		state = JobNoCaption
	}

	evt := jlog.Info()
	if state == JobFailed {
		evt = jlog.Warn().Str("error_code", code)
	}
	evt.Int64("duration_ms", duration.Milliseconds()).Str("state", string(state)).Msg("Job finished")

	q.mu.Lock()
	q.finishLocked(job, state, code)
	q.mu.Unlock()
}

// finishLocked records a terminal state and evicts the oldest finished jobs
// beyond the retention limit. q.mu must be held.
func (q *JobQueue) finishLocked(job *prefetchJob, state JobState, code string) {
	job.cancelFunc()
	job.state = state
	job.errorCode = code
	q.finished = append(q.finished, job.id)
	for len(q.finished) > q.config.Retained {
		delete(q.jobsByID, q.finished[0])
		q.finished = q.finished[1:]
	}
}

func isTerminal(s JobState) bool {
	switch s {
	case JobSucceeded, JobNoCaption, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Close stops the workers, cancels unfinished jobs and waits for running
// jobs to return.
func (q *JobQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	for _, job := range q.jobsByID {
		if !isTerminal(job.state) {
			job.cancelFunc()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *JobQueue) monitorHungJobs() {
	ticker := time.NewTicker(q.config.HungAfter / 2)
	defer ticker.Stop()

	for {
		select {
		case <-q.quit:
			return
		case <-ticker.C:
			q.checkHungJobs()
		}
	}
}

// checkHungJobs logs jobs that have been running longer than HungAfter.
func (q *JobQueue) checkHungJobs() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for id, job := range q.jobsByID {
		if job.state == JobRunning && now.Sub(job.startedAt) > q.config.HungAfter {
			q.log.Warn().
				Str("job_id", id).
				Str("video_id", job.videoID).
				Dur("duration", now.Sub(job.startedAt)).
				Msg("Found hung job")
		}
	}
}
