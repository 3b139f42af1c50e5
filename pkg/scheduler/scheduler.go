package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/nforsman/booru-client/pkg/ratelimit"
)

// Prometheus metrics for scheduler operations.
var (
	jobsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booru_jobs_submitted_total",
		Help: "Total jobs submitted to the scheduler",
	})

	jobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booru_jobs_completed_total",
		Help: "Total jobs completed by outcome",
	}, []string{"outcome"}) // "ok", "http_error", "transport_error"

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "booru_active_workers",
		Help: "Currently active worker goroutines",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "booru_queue_depth",
		Help: "Jobs waiting in the scheduler queue",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booru_job_duration_seconds",
		Help:    "Job execution duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Errors returned by Await.
var (
	// ErrResultNotFound means the job id is unknown or its result was
	// already consumed.
	ErrResultNotFound = errors.New("result not found")

	// ErrAwaitTimeout means the wait deadline elapsed. The in-flight call is
	// allowed to finish; its result is simply never consumed.
	ErrAwaitTimeout = errors.New("await timed out")

	// ErrSchedulerUnavailable means the controller loop stayed down through
	// the bounded restart attempts.
	ErrSchedulerUnavailable = errors.New("scheduler unavailable")
)

// Config holds scheduler tuning knobs.
type Config struct {
	// MaxConcurrent bounds the number of simultaneously active workers.
	MaxConcurrent int

	// NewJobThreshold is the queue depth per additional desired worker.
	NewJobThreshold int

	// Pacer, when set, paces dispatching. Nil disables pacing.
	Pacer *ratelimit.Pacer

	// RestartAttempts bounds controller restarts during Await.
	RestartAttempts int

	// HTTPClient executes requests. Defaults to a 30 second timeout client.
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:   4,
		NewJobThreshold: 60,
		RestartAttempts: 5,
	}
}

// Scheduler owns a FIFO job queue, an elastic pool of one-shot workers and
// the shared result tray. A dedicated controller goroutine dispatches jobs;
// network I/O happens on workers, never on the controller.
type Scheduler struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger

	mu      sync.Mutex
	queue   []*Job
	active  int
	running bool

	tray *tray
}

// New creates a scheduler. The controller loop starts lazily on the first
// Submit and exits once the queue is empty and all workers finished.
func New(cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.NewJobThreshold <= 0 {
		cfg.NewJobThreshold = 1
	}
	if cfg.RestartAttempts <= 0 {
		cfg.RestartAttempts = 5
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Scheduler{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		tray:       newTray(),
	}
}

// Submit enqueues a job and soft-starts the controller. Never blocks.
func (s *Scheduler) Submit(endpoint, method string, headers map[string]string, payload map[string][]string) string {
	job := &Job{
		ID:       uuid.NewString(),
		Endpoint: endpoint,
		Method:   method,
		Headers:  headers,
		Payload:  payload,
	}

	// The waiter channel must exist before the controller can see the job,
	// or a fast worker completes against an unregistered id and the channel
	// created afterwards is never closed.
	s.tray.register(job.ID)

	s.mu.Lock()
	s.queue = append(s.queue, job)
	queueDepth.Set(float64(len(s.queue)))
	s.mu.Unlock()

	jobsSubmittedTotal.Inc()
	s.softStart()

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Job submitted")

	return job.ID
}

// Await blocks until the job's result is present and pops it. A timeout of
// zero or less waits indefinitely (subject to ctx). A second Await for the
// same id fails with ErrResultNotFound.
func (s *Scheduler) Await(ctx context.Context, jobID string, timeout time.Duration) (*Result, error) {
	done, ok := s.tray.waiter(jobID)
	if !ok {
		if res := s.tray.take(jobID); res != nil {
			return res, nil
		}
		return nil, fmt.Errorf("%w: job %s", ErrResultNotFound, jobID)
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	liveness := time.NewTicker(100 * time.Millisecond)
	defer liveness.Stop()
	restarts := 0

	for {
		select {
		case <-done:
			res := s.tray.take(jobID)
			if res == nil {
				return nil, fmt.Errorf("%w: job %s", ErrResultNotFound, jobID)
			}
			return res, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("%w: job %s after %s", ErrAwaitTimeout, jobID, timeout)
		case <-liveness.C:
			if s.alive() {
				continue
			}
			restarts++
			if restarts > s.cfg.RestartAttempts {
				s.logger.Error().
					Str("job_id", jobID).
					Int("restarts", restarts-1).
					Msg("Controller stayed down, giving up on job")
				return nil, fmt.Errorf("%w: job %s", ErrSchedulerUnavailable, jobID)
			}
			s.logger.Warn().
				Str("job_id", jobID).
				Int("attempt", restarts).
				Msg("Controller not running, restarting")
			s.softStart()
		}
	}
}

// Pending reports whether queued or active work remains.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0 || s.active > 0
}

func (s *Scheduler) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) softStart() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	go s.controlLoop()
}

// controlLoop dispatches at most one worker per iteration, applying the
// pacer interval as a post-spawn delay. It exits when no work remains.
func (s *Scheduler) controlLoop() {
	s.logger.Debug().Msg("Controller started")
	defer s.logger.Debug().Msg("Controller finished")

	for {
		now := time.Now()
		if s.cfg.Pacer != nil {
			s.cfg.Pacer.Tick(now)
		}

		s.mu.Lock()
		queued := len(s.queue)
		if queued == 0 && s.active == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}

		// One worker per full threshold of queued jobs, plus one. Floor
		// division: a partial threshold does not earn an extra worker.
		desired := queued/s.cfg.NewJobThreshold + 1
		if desired > s.cfg.MaxConcurrent {
			desired = s.cfg.MaxConcurrent
		}

		var job *Job
		if s.active < desired && queued > 0 {
			job = s.queue[0]
			s.queue = s.queue[1:]
			s.active++
			queueDepth.Set(float64(len(s.queue)))
			activeWorkers.Set(float64(s.active))
		}
		s.mu.Unlock()

		if job == nil {
			time.Sleep(s.idleInterval())
			continue
		}

		go s.runWorker(job)

		if s.cfg.Pacer != nil {
			time.Sleep(s.cfg.Pacer.NextInterval(now))
		}
	}
}

// idleInterval is the sleep while waiting on in-flight workers with nothing
// to dispatch. It must not consume pacing credits, so it reads the base
// interval instead of asking the pacer for a dispatch interval.
func (s *Scheduler) idleInterval() time.Duration {
	if s.cfg.Pacer == nil {
		return 100 * time.Millisecond
	}
	idle := s.cfg.Pacer.Base() / 10
	if idle < 100*time.Millisecond {
		idle = 100 * time.Millisecond
	}
	return idle
}

// runWorker executes exactly one job and stores its result. One job per
// worker: job state stays isolated and the workload is I/O bound anyway.
func (s *Scheduler) runWorker(job *Job) {
	defer func() {
		s.mu.Lock()
		s.active--
		activeWorkers.Set(float64(s.active))
		s.mu.Unlock()
	}()

	start := time.Now()
	res := s.execute(job)
	jobDuration.Observe(time.Since(start).Seconds())

	switch {
	case res.Err != nil:
		jobsCompletedTotal.WithLabelValues("transport_error").Inc()
		s.logger.Error().
			Err(res.Err).
			Str("job_id", job.ID).
			Str("endpoint", job.Endpoint).
			Msg("Request failed")
	case res.StatusCode >= 400:
		jobsCompletedTotal.WithLabelValues("http_error").Inc()
		s.logger.Error().
			Str("job_id", job.ID).
			Str("endpoint", job.Endpoint).
			Int("status", res.StatusCode).
			Msg("Request returned error status")
	default:
		jobsCompletedTotal.WithLabelValues("ok").Inc()
		s.logger.Debug().
			Str("job_id", job.ID).
			Str("endpoint", job.Endpoint).
			Int("status", res.StatusCode).
			Msg("Request completed")
	}

	s.tray.put(job.ID, res)
}

// execute performs the HTTP call. The full response is stored regardless of
// status code; callers inspect the status themselves.
func (s *Scheduler) execute(job *Job) *Result {
	endpoint := job.Endpoint
	var body io.Reader

	if len(job.Payload) > 0 {
		if job.Method == http.MethodGet || job.Method == "" {
			sep := "?"
			if strings.Contains(endpoint, "?") {
				sep = "&"
			}
			endpoint = endpoint + sep + job.Payload.Encode()
		} else {
			body = strings.NewReader(job.Payload.Encode())
		}
	}

	method := job.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequest(method, endpoint, body)
	if err != nil {
		return &Result{URL: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, value := range job.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &Result{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{URL: endpoint, Err: fmt.Errorf("read response body: %w", err)}
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header.Clone(),
		Body:       data,
		URL:        endpoint,
	}
}
