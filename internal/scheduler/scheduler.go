// Package scheduler runs renders off the UI goroutine. Each role (focus,
// grid, animation) owns a request queue, a response queue, its workers and
// a single consumer that is the only writer of the role's cache. The UI
// submits work, waits on Notify and polls the caches; it never blocks on a
// queue.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/llehouerou/termimage/internal/anim"
	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/render"
)

const (
	focusQueueSize = 8
	gridQueueSize  = 512
	animQueueSize  = 8
)

// FaultReporter receives render faults, at most once per image identity
// until the identity is evicted.
type FaultReporter interface {
	ReportFault(id string, err error)
}

// Forgetter is implemented by reporters that track reported identities.
type Forgetter interface {
	Forget(id string)
}

// Config configures a Scheduler.
type Config struct {
	// GridWorkers is the number of grid workers; 0 runs a single worker.
	GridWorkers int
	Render      render.Options
	AnimCache   anim.CachePolicy
	Reporter    FaultReporter
	Logger      *slog.Logger
}

// Scheduler is the asynchronous render pipeline.
type Scheduler struct {
	cfg    Config
	log    *slog.Logger
	faults *faultMemo

	notify chan struct{}
	closed atomic.Bool
	quit   chan struct{}

	workers   sync.WaitGroup
	consumers sync.WaitGroup

	focus *focusRole
	grid  *gridRole
	anim  *animRole
}

// New starts the workers and consumers of every role.
func New(cfg Config) *Scheduler {
	if cfg.GridWorkers <= 0 {
		cfg.GridWorkers = 1
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Scheduler{
		cfg:    cfg,
		log:    log,
		faults: newFaultMemo(cfg.Reporter),
		notify: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	s.focus = newFocusRole()
	s.grid = newGridRole()
	s.anim = newAnimRole()

	s.workers.Go(s.focusWorker)
	for range cfg.GridWorkers {
		s.workers.Go(s.gridWorker)
	}
	s.workers.Go(s.animWorker)

	s.consumers.Go(s.focusConsumer)
	s.consumers.Go(s.gridConsumer)
	s.consumers.Go(s.animConsumer)
	return s
}

// Notify is signalled whenever a cache changed. It has capacity 1, so a
// pending signal absorbs later ones until the UI drains it.
func (s *Scheduler) Notify() <-chan struct{} {
	return s.notify
}

func (s *Scheduler) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Close stops every worker with one sentinel each and waits for them and
// the consumers, bounded by ctx.
func (s *Scheduler) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	// Queued grid work is stale from here on.
	s.grid.gen.Add(1)

	if err := stopWorkers(ctx, &s.focus.sendMu, s.focus.req, 1); err != nil {
		return err
	}
	if err := stopWorkers(ctx, &s.grid.sendMu, s.grid.req, s.cfg.GridWorkers); err != nil {
		return err
	}
	select {
	case s.anim.cmds <- animCmd{kind: cmdShutdown}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := wait(ctx, &s.workers); err != nil {
		return err
	}
	close(s.quit)
	return wait(ctx, &s.consumers)
}

// stopWorkers empties ch and queues one stop sentinel per worker. Nothing
// can be submitted once the scheduler is closed, so the queue only shrinks
// while mu is held.
func stopWorkers(ctx context.Context, mu *sync.Mutex, ch chan job, n int) error {
	mu.Lock()
	defer mu.Unlock()
drain:
	for {
		select {
		case <-ch:
		default:
			break drain
		}
	}
	for range n {
		select {
		case ch <- job{stop: true}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func wait(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) checkOpen() error {
	if s.closed.Load() {
		return imgerr.ErrClosed
	}
	return nil
}

// job is a queued render; stop is the worker sentinel.
type job struct {
	stop bool
	cell string // grid cell, empty for focus jobs
	id   string
	key  string
	gen  uint64
	req  render.Request
}

// response carries a finished render to a consumer.
type response struct {
	job job
	res render.Result
}

// renderJob renders j, short-circuiting identities already known to be
// faulty.
func (s *Scheduler) renderJob(j job) render.Result {
	if err, ok := s.faults.lookup(j.id); ok {
		cols, rows, _ := j.req.Resolve()
		return render.Faulty(cols, rows, err)
	}
	res, err := render.RenderOrFault(j.req, s.cfg.Render)
	if err != nil {
		// Validated on submit, so only a changed image gets here.
		cols, rows, _ := j.req.Resolve()
		res = render.Faulty(cols, rows, err)
	}
	if res.Faulty {
		s.faults.record(j.id, res.Err)
		s.log.Debug("render faulted", "image", j.id, "err", res.Err)
	}
	return res
}
