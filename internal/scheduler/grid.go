package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/llehouerou/termimage/internal/render"
)

type gridEntry struct {
	id  string
	key string
	res render.Result
}

// inflight marks a cell whose render is queued for a generation.
type inflight struct {
	key string
	gen uint64
}

// gridReset asks the consumer to finish a grid change.
type gridReset struct {
	done chan struct{}
}

type gridRole struct {
	req  chan job
	resp chan response
	ctl  chan gridReset

	sendMu sync.Mutex

	// changing is raised for the duration of a grid change.
	changing atomic.Bool
	gen      atomic.Uint64

	mu       sync.RWMutex
	dir      string
	cols     int
	rows     int
	cache    map[string]gridEntry
	inflight map[string]inflight
}

func newGridRole() *gridRole {
	return &gridRole{
		req:      make(chan job, gridQueueSize),
		resp:     make(chan response, gridQueueSize),
		ctl:      make(chan gridReset),
		cache:    map[string]gridEntry{},
		inflight: map[string]inflight{},
	}
}

// SubmitGrid queues the render of one grid cell. It reports whether a job
// was queued: nothing is queued while the grid is changing, when the cell
// already holds this render or when the same render is in flight.
func (s *Scheduler) SubmitGrid(cell string, req render.Request) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if err := req.Validate(); err != nil {
		return false, err
	}
	g := s.grid
	if g.changing.Load() {
		return false, nil
	}
	key := req.Key()

	g.mu.Lock()
	gen := g.gen.Load()
	if e, ok := g.cache[cell]; ok && e.key == key {
		g.mu.Unlock()
		return false, nil
	}
	if in, ok := g.inflight[cell]; ok && in.key == key && in.gen == gen {
		g.mu.Unlock()
		return false, nil
	}
	g.inflight[cell] = inflight{key: key, gen: gen}
	g.mu.Unlock()

	g.sendMu.Lock()
	defer g.sendMu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	select {
	case g.req <- job{cell: cell, id: req.Image.ID(), key: key, gen: gen, req: req}:
		return true, nil
	default:
		g.mu.Lock()
		if in := g.inflight[cell]; in.key == key && in.gen == gen {
			delete(g.inflight, cell)
		}
		g.mu.Unlock()
		return false, nil
	}
}

// PollGrid returns the cached render of cell for req.
func (s *Scheduler) PollGrid(cell string, req render.Request) (render.Result, bool) {
	key := req.Key()
	g := s.grid
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.cache[cell]
	if !ok || key == "" || e.key != key {
		return render.Result{}, false
	}
	return e.res, true
}

// Grid returns the active grid.
func (s *Scheduler) Grid() (dir string, cols, rows int) {
	g := s.grid
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dir, g.cols, g.rows
}

// NewGrid switches to a new grid and blocks until no result of the
// previous grid can reach the cache.
func (s *Scheduler) NewGrid(dir string, cols, rows int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	g := s.grid
	g.changing.Store(true)
	g.mu.Lock()
	g.gen.Add(1)
	g.dir, g.cols, g.rows = dir, cols, rows
	g.mu.Unlock()

	reset := gridReset{done: make(chan struct{})}
	select {
	case g.ctl <- reset:
	case <-s.quit:
		return nil
	}
	select {
	case <-reset.done:
	case <-s.quit:
	}
	return nil
}

func (s *Scheduler) gridWorker() {
	g := s.grid
	for j := range g.req {
		if j.stop {
			return
		}
		if j.gen != g.gen.Load() {
			continue
		}
		g.resp <- response{job: j, res: s.renderJob(j)}
	}
}

func (s *Scheduler) gridConsumer() {
	g := s.grid
	for {
		select {
		case r := <-g.resp:
			if s.applyGrid(r) {
				s.signal()
			}
		case reset := <-g.ctl:
			s.resetGrid()
			close(reset.done)
		case <-s.quit:
			return
		}
	}
}

func (s *Scheduler) applyGrid(r response) bool {
	g := s.grid
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.job.gen != g.gen.Load() {
		return false
	}
	if in := g.inflight[r.job.cell]; in.key == r.job.key && in.gen == r.job.gen {
		delete(g.inflight, r.job.cell)
	}
	g.cache[r.job.cell] = gridEntry{id: r.job.id, key: r.job.key, res: r.res}
	return true
}

// resetGrid drains stale work, clears the cache and lowers the change flag.
func (s *Scheduler) resetGrid() {
	g := s.grid
	s.drainGridRequests()
drain:
	for {
		select {
		case <-g.resp:
		default:
			break drain
		}
	}

	g.mu.Lock()
	evicted := make([]string, 0, len(g.cache))
	for _, e := range g.cache {
		if e.res.Faulty {
			evicted = append(evicted, e.id)
		}
	}
	clear(g.cache)
	clear(g.inflight)
	g.mu.Unlock()

	for _, id := range evicted {
		s.faults.forget(id)
	}
	g.changing.Store(false)
}

// drainGridRequests drops queued jobs of older generations. Stop
// sentinels are put back for the workers.
func (s *Scheduler) drainGridRequests() {
	g := s.grid
	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	var keep []job
drain:
	for {
		select {
		case j := <-g.req:
			if j.stop || j.gen == g.gen.Load() {
				keep = append(keep, j)
			}
		default:
			break drain
		}
	}
	for _, j := range keep {
		g.req <- j
	}
}
