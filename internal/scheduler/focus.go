package scheduler

import (
	"sync"

	"github.com/llehouerou/termimage/internal/render"
)

type focusRole struct {
	req  chan job
	resp chan response

	// sendMu orders submissions against the shutdown sentinel.
	sendMu sync.Mutex

	mu      sync.RWMutex
	current string
	key     string
	res     render.Result
	ok      bool
}

func newFocusRole() *focusRole {
	return &focusRole{
		req:  make(chan job, focusQueueSize),
		resp: make(chan response, focusQueueSize),
	}
}

func (f *focusRole) isCurrent(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current == id
}

// SubmitFocus makes req's image the displayed one and queues its render
// unless the slot already holds it. Validation errors are returned before
// anything is queued.
func (s *Scheduler) SubmitFocus(req render.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	id, key := req.Image.ID(), req.Key()

	f := s.focus
	f.mu.Lock()
	f.current = id
	cached := f.ok && f.key == key
	f.mu.Unlock()
	if cached {
		return nil
	}

	f.sendMu.Lock()
	defer f.sendMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	j := job{id: id, key: key, req: req}
	select {
	case f.req <- j:
	default:
		// The newest request supersedes a queued one.
		select {
		case <-f.req:
		default:
		}
		select {
		case f.req <- j:
		default:
		}
	}
	return nil
}

// PollFocus returns the focus result for req, if it has been rendered.
func (s *Scheduler) PollFocus(req render.Request) (render.Result, bool) {
	key := req.Key()
	f := s.focus
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.ok || key == "" || f.key != key {
		return render.Result{}, false
	}
	return f.res, true
}

// SetCurrent changes the displayed image without queueing a render.
// Results for any other image are dropped.
func (s *Scheduler) SetCurrent(id string) {
	s.focus.mu.Lock()
	s.focus.current = id
	s.focus.mu.Unlock()
}

func (s *Scheduler) focusWorker() {
	f := s.focus
	for j := range f.req {
		if j.stop {
			return
		}
		if !f.isCurrent(j.id) {
			continue
		}
		f.resp <- response{job: j, res: s.renderJob(j)}
	}
}

func (s *Scheduler) focusConsumer() {
	f := s.focus
	for {
		select {
		case r := <-f.resp:
			f.mu.Lock()
			if f.current != r.job.id {
				f.mu.Unlock()
				continue
			}
			f.key, f.res, f.ok = r.job.key, r.res, true
			f.mu.Unlock()
			s.signal()
		case <-s.quit:
			return
		}
	}
}
