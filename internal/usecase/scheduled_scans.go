package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/pkg/config"
	applogger "StockPulse/pkg/logger"
)

const scheduledScanTimeout = 30 * time.Minute

// ScheduledScans runs configured batch scans on cron specs. Fragments go to the publisher
// when one is set; otherwise only the outcome is logged.
type ScheduledScans struct {
	cron      *cron.Cron
	orch      *Orchestrator
	publisher domrepo.FragmentPublisher
	jobs      []config.ScanJob
	logger    *applogger.Logger

	mu      sync.Mutex
	lastRun map[string]ScanOutcome
}

// ScanOutcome summarizes the last run of a job.
type ScanOutcome struct {
	RequestID string
	Scanned   int
	Matched   int
	Errors    int
	Finished  time.Time
	Err       error
}

func NewScheduledScans(orch *Orchestrator, publisher domrepo.FragmentPublisher, jobs []config.ScanJob, logger *applogger.Logger) *ScheduledScans {
	jobs = append([]config.ScanJob(nil), jobs...)
	for i := range jobs {
		if jobs[i].Name == "" {
			jobs[i].Name = fmt.Sprintf("scan-%d", i)
		}
	}
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &ScheduledScans{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		orch:      orch,
		publisher: publisher,
		jobs:      jobs,
		logger:    logger,
		lastRun:   make(map[string]ScanOutcome),
	}
}

// Start registers every job and starts the cron loop. A bad spec fails before anything runs.
func (s *ScheduledScans) Start() error {
	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
		}
		s.logger.Info("scan scheduled",
			applogger.String("job", job.Name),
			applogger.String("spec", job.Spec),
			applogger.Int("symbols", len(job.Symbols)),
		)
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *ScheduledScans) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the named job synchronously.
func (s *ScheduledScans) RunNow(name string) (ScanOutcome, error) {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.run(job), nil
		}
	}
	return ScanOutcome{}, fmt.Errorf("unknown scan job %q", name)
}

// LastRun reports the last outcome of a job.
func (s *ScheduledScans) LastRun(name string) (ScanOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.lastRun[name]
	return o, ok
}

func (s *ScheduledScans) run(job config.ScanJob) ScanOutcome {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledScanTimeout)
	defer cancel()

	req := models.ScanRequest{
		RequestID: fmt.Sprintf("cron-%s-%s", job.Name, uuid.NewString()),
		Symbols:   job.Symbols,
		Market:    job.Market,
		MinScore:  job.MinScore,
		Stream:    job.Stream,
	}
	out := ScanOutcome{RequestID: req.RequestID}
	log := s.logger.With(applogger.String("job", job.Name), applogger.String("request_id", req.RequestID))
	log.Info("scheduled scan started")

	tally := func(f models.Fragment) {
		switch f.Kind {
		case models.KindError:
			out.Errors++
		case models.KindCompletion:
			out.Scanned, out.Matched = f.Completion.TotalScanned, f.Completion.TotalMatched
		}
	}
	if s.publisher != nil {
		_, out.Err = ForwardFragments(ctx, tallying{s.publisher, tally}, req.RequestID, func(ctx context.Context) <-chan models.Fragment {
			return s.orch.Scan(ctx, req)
		})
	} else {
		for f := range s.orch.Scan(ctx, req) {
			tally(f)
		}
	}
	out.Finished = time.Now()

	if out.Err != nil {
		log.Error("scheduled scan failed", applogger.Error(out.Err))
	} else {
		log.Info("scheduled scan completed",
			applogger.Int("scanned", out.Scanned),
			applogger.Int("matched", out.Matched),
			applogger.Int("errors", out.Errors),
		)
	}
	s.mu.Lock()
	s.lastRun[job.Name] = out
	s.mu.Unlock()
	return out
}

// tallying observes fragments on their way to the publisher.
type tallying struct {
	domrepo.FragmentPublisher
	observe func(models.Fragment)
}

func (t tallying) PublishFragment(ctx context.Context, requestID string, f models.Fragment) error {
	t.observe(f)
	return t.FragmentPublisher.PublishFragment(ctx, requestID, f)
}
