package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/probe"
	"github.com/hamed0406/uptimeworker/internal/validate"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultConcurrency = 64
)

// CheckStore is the part of repo.Checks the worker needs.
type CheckStore interface {
	IDs(ctx context.Context) ([]string, error)
	Read(ctx context.Context, id string) (domain.RawCheck, error)
	Update(ctx context.Context, c domain.Check) error
}

// PassStats counts what happened to the checks of one pass.
type PassStats struct {
	Listed     int
	Probed     int
	Up         int
	Down       int
	Skipped    int // unreadable or malformed
	SaveFailed int
	Alerts     int
}

type Worker struct {
	Logger      *zap.Logger
	Checks      CheckStore
	Validator   *validate.Validator
	Prober      probe.Prober
	Alerter     *Alerter
	Interval    time.Duration
	Concurrency int

	// Now stamps lastCheckedAt. Diagnose runs after network failures; nil
	// disables it.
	Now      func() time.Time
	Diagnose func(ctx context.Context, host string) probe.DNSStatus

	running atomic.Bool
}

func NewWorker(
	logger *zap.Logger,
	checks CheckStore,
	v *validate.Validator,
	prober probe.Prober,
	alerter *Alerter,
	interval time.Duration,
	concurrency int,
) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Worker{
		Logger:      logger,
		Checks:      checks,
		Validator:   v,
		Prober:      prober,
		Alerter:     alerter,
		Interval:    interval,
		Concurrency: concurrency,
		Now:         time.Now,
		Diagnose:    probe.DiagnoseDNS,
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
// A tick that fires while a pass is still running is dropped. Run returns
// only after the pass in flight (if any) has finished.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	w.Logger.Info("worker_started",
		zap.Duration("interval", w.Interval),
		zap.Int("concurrency", w.Concurrency))

	w.startPass(ctx, &wg)

	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("worker_stopping")
			return
		case <-t.C:
			w.startPass(ctx, &wg)
		}
	}
}

func (w *Worker) startPass(ctx context.Context, wg *sync.WaitGroup) {
	if !w.running.CompareAndSwap(false, true) {
		w.Logger.Warn("worker_pass_skipped", zap.String("reason", "previous pass still running"))
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer w.running.Store(false)
		w.RunPass(ctx)
	}()
}

// RunPass runs the pipeline for every stored check and waits for all of them.
// Once ctx is cancelled no new checks are started, but those already started
// are carried through to persistence and alerting.
func (w *Worker) RunPass(ctx context.Context) PassStats {
	var stats PassStats
	start := time.Now()

	ids, err := w.Checks.IDs(ctx)
	if err != nil {
		w.Logger.Warn("worker_list_error", zap.Error(err))
		return stats
	}
	stats.Listed = len(ids)
	if len(ids) == 0 {
		w.Logger.Debug("worker_no_checks")
		return stats
	}

	detached := context.WithoutCancel(ctx)
	results := make(chan result, len(ids))
	sem := make(chan struct{}, w.Concurrency)
	var wg sync.WaitGroup

	launched := 0
loop:
	for _, id := range ids {
		select {
		case <-ctx.Done():
			w.Logger.Info("worker_pass_interrupted", zap.Int("not_started", len(ids)-launched))
			break loop
		case sem <- struct{}{}:
		}
		launched++
		wg.Add(1)
		id := id
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results <- w.process(detached, id)
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		stats.add(r)
	}
	w.Logger.Info("worker_pass_done",
		zap.Int("checks", stats.Listed),
		zap.Int("probed", stats.Probed),
		zap.Int("up", stats.Up),
		zap.Int("down", stats.Down),
		zap.Int("skipped", stats.Skipped),
		zap.Int("alerts", stats.Alerts),
		zap.Duration("took", time.Since(start)))
	return stats
}

type result struct {
	probed    bool
	state     domain.State
	skipped   bool
	saveError bool
	alerted   bool
}

func (s *PassStats) add(r result) {
	switch {
	case r.skipped:
		s.Skipped++
		return
	case r.probed:
		s.Probed++
		if r.state == domain.StateUp {
			s.Up++
		} else {
			s.Down++
		}
	}
	if r.saveError {
		s.SaveFailed++
	}
	if r.alerted {
		s.Alerts++
	}
}

// process is the pipeline for one check:
// read, validate, probe, classify, persist, then alert on a transition.
func (w *Worker) process(ctx context.Context, id string) result {
	raw, err := w.Checks.Read(ctx, id)
	if err != nil {
		w.Logger.Warn("check_read_error", zap.String("check_id", id), zap.Error(err))
		return result{skipped: true}
	}

	c, err := w.Validator.Validate(raw)
	if err != nil {
		fields := []zap.Field{zap.String("check_id", id), zap.Error(err)}
		var me *validate.MalformedError
		if errors.As(err, &me) {
			fields = append(fields, zap.Strings("fields", me.Fields))
		}
		w.Logger.Warn("check_malformed", fields...)
		return result{skipped: true}
	}

	out := w.Prober.Probe(ctx, c)
	state := domain.Classify(out, c.AcceptedCodes)
	alert := domain.ShouldAlert(c.State, c.LastCheckedAt, state)
	if out.Failed() {
		w.diagnose(ctx, c, out.Err)
	}

	next := c.Observe(state, w.Now())
	r := result{probed: true, state: state}
	if err := w.Checks.Update(ctx, next); err != nil {
		w.Logger.Error("check_update_error", zap.String("check_id", c.ID), zap.Error(err))
		r.saveError = true
		return r
	}

	w.Logger.Debug("check_probed",
		zap.String("check_id", c.ID),
		zap.String("url", c.URL()),
		zap.Int("response_code", out.ResponseCode),
		zap.String("state", string(state)),
		zap.Bool("transition", alert))

	if alert && w.Alerter != nil {
		r.alerted = w.Alerter.Alert(ctx, next, state) == nil
	}
	return r
}

func (w *Worker) diagnose(ctx context.Context, c domain.Check, perr error) {
	fields := []zap.Field{
		zap.String("check_id", c.ID),
		zap.String("url", c.URL()),
		zap.Error(perr),
	}
	if w.Diagnose != nil && !errors.Is(perr, probe.ErrTimeout) {
		st := w.Diagnose(ctx, c.Host)
		fields = append(fields,
			zap.String("dns_class", string(st.Class)),
			zap.String("dns_error", st.ResolverError))
	}
	w.Logger.Info("check_probe_failed", fields...)
}
