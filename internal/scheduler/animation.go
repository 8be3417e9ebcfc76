package scheduler

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llehouerou/termimage/internal/anim"
	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/render"
	"github.com/llehouerou/termimage/internal/style"
)

type animCmdKind int

const (
	cmdStart animCmdKind = iota
	cmdResize
	cmdStop
	cmdShutdown
)

type animCmd struct {
	kind  animCmdKind
	gen   uint64
	it    *anim.Iterator
	req   render.Request
	size  imagesrc.Size
	frame image.Point
}

type animFrame struct {
	gen   uint64
	frame anim.Frame
}

type animRole struct {
	cmds   chan animCmd
	frames chan animFrame
	gen    atomic.Uint64

	mu   sync.RWMutex
	req  render.Request
	cols int
	rows int
	last anim.Frame
	ok   bool
	done bool
}

func newAnimRole() *animRole {
	return &animRole{
		cmds:   make(chan animCmd, animQueueSize),
		frames: make(chan animFrame, animQueueSize),
	}
}

// StartAnimation replaces the running animation with req's image, looping
// repeat times (anim.Infinite for ever).
func (s *Scheduler) StartAnimation(req render.Request, repeat int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	cols, rows, err := req.Resolve()
	if err != nil {
		return err
	}
	it, err := anim.New(req.Image, anim.Options{
		Repeat: repeat,
		Cache:  s.cfg.AnimCache,
		Style:  req.Style,
		Args:   req.Args,
		Alpha:  req.Alpha,
		Size:   req.Size,
		Frame:  req.Frame,
		Render: s.cfg.Render,
	})
	if err != nil {
		return err
	}

	a := s.anim
	a.mu.Lock()
	gen := a.gen.Add(1)
	a.req, a.cols, a.rows = req, cols, rows
	a.last, a.ok, a.done = anim.Frame{}, false, false
	a.mu.Unlock()

	return s.sendAnim(animCmd{kind: cmdStart, gen: gen, it: it, req: req})
}

// ResizeAnimation re-targets the running animation. Frames rendered at the
// previous size are never published after it returns.
func (s *Scheduler) ResizeAnimation(size imagesrc.Size, frame image.Point) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	a := s.anim
	a.mu.Lock()
	if a.req.Image == nil {
		a.mu.Unlock()
		return nil
	}
	req := a.req
	req.Size, req.Frame = size, frame
	cols, rows, err := req.Resolve()
	if err != nil {
		a.mu.Unlock()
		return err
	}
	gen := a.gen.Add(1)
	a.req, a.cols, a.rows = req, cols, rows
	a.mu.Unlock()

	return s.sendAnim(animCmd{kind: cmdResize, gen: gen, size: size, frame: frame})
}

// StopAnimation stops the running animation and drops its last frame.
func (s *Scheduler) StopAnimation() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	a := s.anim
	a.mu.Lock()
	gen := a.gen.Add(1)
	a.req = render.Request{}
	a.last, a.ok, a.done = anim.Frame{}, false, false
	a.mu.Unlock()

	return s.sendAnim(animCmd{kind: cmdStop, gen: gen})
}

// PollFrame returns the frame to display. A frame of another size than the
// requested one is never returned.
func (s *Scheduler) PollFrame() (anim.Frame, bool) {
	a := s.anim
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.ok || a.last.Result.Cols != a.cols || a.last.Result.Rows != a.rows {
		return anim.Frame{}, false
	}
	return a.last, true
}

// AnimationDone reports whether the running animation played all its loops.
func (s *Scheduler) AnimationDone() bool {
	a := s.anim
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

func (s *Scheduler) sendAnim(c animCmd) error {
	select {
	case s.anim.cmds <- c:
		return nil
	case <-s.quit:
		return nil
	}
}

// animRun is the worker-side state of one animation.
type animRun struct {
	gen uint64
	req render.Request
	it  *anim.Iterator
	// native runs are a single transmission the terminal animates itself.
	native bool
	// ahead is the next frame, rendered before it is due.
	ahead   anim.Frame
	hasNext bool
	err     error
}

func (s *Scheduler) animWorker() {
	var (
		run   *animRun
		timer = time.NewTimer(time.Hour)
		due   <-chan time.Time
	)
	timer.Stop()
	stop := func() {
		if run != nil {
			_ = run.it.Close() //nolint:errcheck // Close never fails
			run = nil
		}
		timer.Stop()
		due = nil
	}
	// publish sends the rendered-ahead frame, renders the next one and arms
	// the timer with the published frame's duration.
	publish := func() {
		if !run.hasNext {
			s.animEnded(run)
			stop()
			return
		}
		f := run.ahead
		s.anim.frames <- animFrame{gen: run.gen, frame: f}
		if run.native {
			return
		}
		s.renderAhead(run)
		timer.Reset(f.Duration)
		due = timer.C
	}
	// prime renders the first frame of run's current size.
	prime := func() {
		if f, ok := s.native(run.req); ok {
			run.native, run.ahead, run.hasNext = true, f, true
			return
		}
		run.native = false
		s.renderAhead(run)
	}

	for {
		select {
		case c := <-s.anim.cmds:
			switch c.kind {
			case cmdShutdown:
				stop()
				return
			case cmdStop:
				stop()
			case cmdStart:
				stop()
				run = &animRun{gen: c.gen, req: c.req, it: c.it}
				prime()
				publish()
			case cmdResize:
				if run == nil {
					continue
				}
				run.gen = c.gen
				run.req.Size, run.req.Frame = c.size, c.frame
				run.it.SetSize(c.size, c.frame)
				timer.Stop()
				due = nil
				if !run.native && run.hasNext {
					// Render the pending frame again at the new size.
					_ = run.it.Seek(run.ahead.Index) //nolint:errcheck // index came from the iterator
					s.renderAhead(run)
				} else if run.native {
					prime()
				}
				publish()
			}
		case <-due:
			due = nil
			if run != nil {
				publish()
			}
		}
	}
}

func (s *Scheduler) renderAhead(run *animRun) {
	f, err := run.it.Next()
	if err != nil {
		run.hasNext, run.err = false, err
		return
	}
	if f.Result.Faulty {
		s.faults.record(run.req.Image.ID(), f.Result.Err)
	}
	run.ahead, run.hasNext = f, true
}

func (s *Scheduler) animEnded(run *animRun) {
	if run.err != nil && !errors.Is(run.err, anim.ErrExhausted) {
		s.log.Warn("animation stopped", "image", run.req.Image.ID(), "err", run.err)
	}
	s.anim.frames <- animFrame{gen: run.gen, frame: anim.Frame{Index: -1}}
}

// native renders the whole animation as one transmission of the original
// file when the style can pass it through.
func (s *Scheduler) native(req render.Request) (anim.Frame, bool) {
	it2, ok := req.Style.(style.ITerm2)
	if !ok || !it2.NativeEligible(req.Image, req.Args) {
		return anim.Frame{}, false
	}
	cols, rows, err := req.Resolve()
	if err != nil {
		return anim.Frame{}, false
	}
	data, err := req.Image.Data()
	if err != nil {
		return anim.Frame{}, false
	}
	out, err := it2.EncodeNative(data, style.Geometry{Cols: cols, Rows: rows}, req.Args)
	if err != nil {
		s.log.Debug("native passthrough failed", "image", req.Image.ID(), "err", err)
		return anim.Frame{}, false
	}
	return anim.Frame{Result: render.Result{Output: out, Cols: cols, Rows: rows}}, true
}

func (s *Scheduler) animConsumer() {
	a := s.anim
	for {
		select {
		case af := <-a.frames:
			if s.applyFrame(af) {
				s.signal()
			}
		case <-s.quit:
			return
		}
	}
}

func (s *Scheduler) applyFrame(af animFrame) bool {
	a := s.anim
	a.mu.Lock()
	defer a.mu.Unlock()
	if af.gen != a.gen.Load() {
		return false
	}
	if af.frame.Index < 0 {
		a.done = true
		return true
	}
	r := af.frame.Result
	if r.Cols != a.cols || r.Rows != a.rows {
		return false
	}
	a.last, a.ok = af.frame, true
	return true
}
