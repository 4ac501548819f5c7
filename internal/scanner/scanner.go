// Package scanner runs a pool of workers that drain a work queue through the
// prober while keeping live aggregate counters.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
	perrors "github.com/ResistanceIsUseless/proxyjudge/internal/errors"
	"github.com/ResistanceIsUseless/proxyjudge/internal/logging"
	"github.com/ResistanceIsUseless/proxyjudge/internal/prober"
)

// Queue is the work source drained by the workers
type Queue interface {
	RecommendNext() (*candidate.Candidate, bool)
	RecordAlive(c *candidate.Candidate)
	RecordDead(c *candidate.Candidate)
	Remaining() int
}

// Prober runs one probe cycle for a candidate
type Prober interface {
	Probe(ctx context.Context, c *candidate.Candidate) prober.Report
}

// Recorder receives per-candidate outcomes, typically for metrics
type Recorder interface {
	RecordProbe(c *candidate.Candidate, report prober.Report, duration time.Duration)
	SetWorkersActive(count int)
}

// Enricher annotates alive candidates, for example with a country code
type Enricher interface {
	Enrich(c *candidate.Candidate)
}

// Options tune a scanner
type Options struct {
	// RatePerSecond caps how many candidates are dequeued per second
	// across all workers. Zero disables pacing.
	RatePerSecond float64
	RateBurst     int

	Logger   *logging.Logger
	Recorder Recorder
	Enricher Enricher
}

// Scanner coordinates one scan run at a time
type Scanner struct {
	prober  Prober
	options Options
	logger  *logging.Logger

	gate     *gate
	counters counters

	mutex   sync.Mutex
	running  bool
	runID    string
	started  time.Time
	finished time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a scanner that probes candidates with p
func New(p Prober, options Options) *Scanner {
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	done := make(chan struct{})
	close(done)
	return &Scanner{
		prober:  p,
		options: options,
		logger:  logger,
		gate:    newGate(),
		done:    done,
	}
}

// Start spawns workers that drain q until it is empty or the run is
// terminated. The worker count is capped at the number of candidates left.
func (s *Scanner) Start(ctx context.Context, q Queue, workers int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return perrors.NewSystemError(perrors.ErrorSystemResourceExhausted, "a scan is already running", nil)
	}
	if err := ctx.Err(); err != nil {
		return perrors.NewSystemError(perrors.ErrorSystemShutdown, "scan context already ended", err)
	}

	total := q.Remaining()
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopWake := context.AfterFunc(runCtx, s.gate.wake)

	var limiter *rate.Limiter
	if s.options.RatePerSecond > 0 {
		burst := s.options.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.options.RatePerSecond), burst)
	}

	s.running = true
	s.runID = uuid.NewString()
	s.started = time.Now()
	s.finished = time.Time{}
	s.cancel = cancel
	s.done = make(chan struct{})
	s.counters.reset(total)
	s.counters.activeWorkers.Store(int64(workers))
	s.setWorkersActive(workers)

	logger := s.logger.WithRun(s.runID)
	logger.ScanStart(total, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go s.worker(runCtx, i, q, limiter, logger, &wg)
	}

	done := s.done
	go func() {
		wg.Wait()
		stopWake()
		cancel()
		close(done)
	}()

	return nil
}

func (s *Scanner) worker(ctx context.Context, id int, q Queue, limiter *rate.Limiter, logger *logging.Logger, wg *sync.WaitGroup) {
	defer func() {
		if r := recover(); r != nil {
			err := perrors.NewSystemError(perrors.ErrorUnexpectedPanic, "worker panicked", fmt.Errorf("%v", r))
			logger.WithWorker(id).Error("Worker panicked", "error", err)
		}
		s.retire(id, logger)
		wg.Done()
	}()

	logger.WorkerStart(id)

	for {
		// pacing comes before the gate so a pause taken during the
		// limiter wait still holds the next dequeue
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}
		if !s.gate.wait(ctx) {
			return
		}
		if ctx.Err() != nil {
			return
		}

		c, ok := q.RecommendNext()
		if !ok {
			return
		}

		start := time.Now()
		report := s.prober.Probe(ctx, c)
		duration := time.Since(start)

		if c.Alive && s.options.Enricher != nil {
			s.options.Enricher.Enrich(c)
		}

		s.counters.record(c)
		if c.Alive {
			q.RecordAlive(c)
			logger.ProxyAlive(c.Key(), string(c.Protocol), string(c.Anonymity), c.Latency)
		} else {
			q.RecordDead(c)
			logger.ProxyDead(c.Key(), len(report.Attempts), report.LastError())
		}

		if s.options.Recorder != nil {
			s.options.Recorder.RecordProbe(c, report, duration)
		}
	}
}

// retire removes a worker from the active count. The last one out marks the
// run finished under the mutex, so ActiveWorkers reaching zero and Start
// accepting a new run are observed together.
func (s *Scanner) retire(id int, logger *logging.Logger) {
	s.mutex.Lock()
	remaining := s.counters.activeWorkers.Add(-1)
	var elapsed time.Duration
	if remaining == 0 {
		s.running = false
		s.finished = time.Now()
		elapsed = s.finished.Sub(s.started)
	}
	scanned, alive := s.counters.scanned.Load(), s.counters.alive.Load()
	s.setWorkersActive(int(remaining))
	s.mutex.Unlock()

	logger.WorkerStop(id)
	if remaining == 0 {
		logger.ScanComplete(scanned, alive, elapsed)
	}
}

func (s *Scanner) setWorkersActive(count int) {
	if s.options.Recorder != nil {
		s.options.Recorder.SetWorkersActive(count)
	}
}

// Pause stops workers from taking new candidates. Probes in flight finish.
func (s *Scanner) Pause() {
	s.gate.pause()
	s.logger.ScanPaused()
}

// Resume lets paused workers continue
func (s *Scanner) Resume() {
	s.gate.resume()
	s.logger.ScanResumed()
}

// TogglePause flips the pause state and reports whether the scan is now paused
func (s *Scanner) TogglePause() bool {
	if s.gate.isPaused() {
		s.Resume()
		return false
	}
	s.Pause()
	return true
}

// Paused reports whether the pause gate is closed
func (s *Scanner) Paused() bool {
	return s.gate.isPaused()
}

// Terminate asks every worker to exit at its next queue pull
func (s *Scanner) Terminate() {
	s.mutex.Lock()
	cancel := s.cancel
	s.mutex.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done returns a channel closed when the current run has finished
func (s *Scanner) Done() <-chan struct{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.done
}

// Wait blocks until the current run has finished
func (s *Scanner) Wait() {
	<-s.Done()
}

// RunID identifies the most recent run
func (s *Scanner) RunID() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.runID
}

// Stats returns a snapshot of the counters
func (s *Scanner) Stats() Stats {
	s.mutex.Lock()
	runID := s.runID
	started, finished := s.started, s.finished
	s.mutex.Unlock()

	stats := Stats{
		RunID:         runID,
		Total:         s.counters.total.Load(),
		Scanned:       s.counters.scanned.Load(),
		Alive:         s.counters.alive.Load(),
		Dead:          s.counters.dead.Load(),
		HTTP:          s.counters.http.Load(),
		SOCKS:         s.counters.socks.Load(),
		Transparent:   s.counters.transparent.Load(),
		High:          s.counters.high.Load(),
		Elite:         s.counters.elite.Load(),
		ActiveWorkers: s.counters.activeWorkers.Load(),
		Paused:        s.gate.isPaused(),
	}
	stats.Anonymous = stats.High + stats.Elite
	switch {
	case !finished.IsZero():
		stats.Elapsed = finished.Sub(started)
	case !started.IsZero():
		stats.Elapsed = time.Since(started)
	}
	stats.ETA = estimateETA(stats.Remaining(), stats.Scanned, stats.Elapsed)
	return stats
}
