// Package scheduler drives dispatch cycles on recurring cadences. Two
// disciplines are supported per cadence: fixed interval (first run
// immediately at start, then every d) and clock-aligned (runs exactly on
// wall-clock slot boundaries such as :00/:15/:30/:45, which gives
// auditable firing times and a tighter effective tolerance for the same
// poll cost).
//
// A cadence never overlaps itself: if a cycle is still running when its
// next slot arrives, that slot is skipped. Independent cadences run
// concurrently — the reminder and confirmation campaigns use disjoint
// dedup namespaces, so that is safe.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of scheduled work. Implementations are expected to honor
// context cancellation; the scheduler does not kill a running job on stop,
// it stops scheduling new runs and waits for in-flight ones.
type Job func(ctx context.Context)

// Scheduler owns a cron runner and the registered cadences.
type Scheduler struct {
	cron    *cron.Cron
	chain   cron.Chain // applied per cadence, see AddInterval
	logger  *slog.Logger
	ctx     context.Context
	started chan struct{}
	wg      sync.WaitGroup // immediate first runs, not tracked by cron
}

// New creates a scheduler in the given location. The location matters for
// clock-aligned cadences: boundaries are computed on that wall clock.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := cron.PrintfLogger(slogPrintf{logger})
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		chain:   cron.NewChain(cron.SkipIfStillRunning(cronLogger)),
		logger:  logger,
		started: make(chan struct{}),
	}
}

// AddInterval registers a fixed-interval cadence: the job runs once
// immediately when the scheduler starts, then every interval thereafter.
//
// The immediate first run goes through the same chained runner as the cron
// entry, so SkipIfStillRunning serializes the two: a first run still in
// flight when the first tick arrives makes the tick a skip, never an
// overlap.
func (s *Scheduler) AddInterval(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("cadence %s: interval must be positive, got %v", name, interval)
	}
	runner := s.chain.Then(cron.FuncJob(s.wrap(name, job)))
	s.cron.Schedule(cron.Every(interval), runner)
	s.logger.Info("cadence registered",
		slog.String("cadence", name),
		slog.String("discipline", "interval"),
		slog.Duration("every", interval))

	// First run fires immediately rather than one interval after start.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-s.started
		runner.Run()
	}()
	return nil
}

// AddAligned registers a clock-aligned cadence: the job runs on every slot
// boundary of the given size (15m → :00/:15/:30/:45, 1h → on the hour).
// Slot sizes must divide an hour evenly and be at most one hour.
func (s *Scheduler) AddAligned(name string, slot time.Duration, job Job) error {
	spec, err := SlotSpec(slot)
	if err != nil {
		return fmt.Errorf("cadence %s: %w", name, err)
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("cadence %s: %w", name, err)
	}
	s.cron.Schedule(sched, s.chain.Then(cron.FuncJob(s.wrap(name, job))))
	s.logger.Info("cadence registered",
		slog.String("cadence", name),
		slog.String("discipline", "aligned"),
		slog.Duration("slot", slot),
		slog.String("spec", spec))
	return nil
}

// SlotSpec converts a slot size into a cron expression firing exactly on
// the aligned wall-clock boundaries. cron's */N minute step is anchored at
// minute zero, which is precisely the alignment wanted.
func SlotSpec(slot time.Duration) (string, error) {
	if slot <= 0 {
		return "", fmt.Errorf("slot must be positive, got %v", slot)
	}
	if slot%time.Minute != 0 {
		return "", fmt.Errorf("slot must be a whole number of minutes, got %v", slot)
	}
	minutes := int(slot / time.Minute)
	if minutes > 60 {
		return "", fmt.Errorf("slot must not exceed one hour, got %v", slot)
	}
	if 60%minutes != 0 {
		return "", fmt.Errorf("slot must divide an hour evenly, got %v", slot)
	}
	if minutes == 60 {
		return "0 * * * *", nil
	}
	return fmt.Sprintf("*/%d * * * *", minutes), nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then stops
// scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	close(s.started)
	s.cron.Start()
	s.logger.Info("scheduler started")

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	s.logger.Info("scheduler stopping, waiting for in-flight cycles")
	<-stopCtx.Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		ctx := s.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		s.logger.Debug("cadence run started", slog.String("cadence", name))
		job(ctx)
		s.logger.Debug("cadence run finished",
			slog.String("cadence", name),
			slog.Duration("duration", time.Since(start)))
	}
}

// slogPrintf adapts slog to cron's Printf-style logger.
type slogPrintf struct{ logger *slog.Logger }

func (l slogPrintf) Printf(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}
