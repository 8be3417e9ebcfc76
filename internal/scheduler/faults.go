package scheduler

import "sync"

// faultMemo remembers identities that failed to render so they are neither
// rendered nor reported again until forgotten.
type faultMemo struct {
	reporter FaultReporter

	mu     sync.Mutex
	faults map[string]error
}

func newFaultMemo(r FaultReporter) *faultMemo {
	return &faultMemo{reporter: r, faults: map[string]error{}}
}

func (m *faultMemo) lookup(id string) (error, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	err, ok := m.faults[id]
	return err, ok
}

// record stores the first fault of id and reports it.
func (m *faultMemo) record(id string, err error) {
	m.mu.Lock()
	if _, ok := m.faults[id]; ok {
		m.mu.Unlock()
		return
	}
	m.faults[id] = err
	m.mu.Unlock()

	if m.reporter != nil {
		m.reporter.ReportFault(id, err)
	}
}

func (m *faultMemo) forget(id string) {
	m.mu.Lock()
	_, ok := m.faults[id]
	delete(m.faults, id)
	m.mu.Unlock()

	if f, isForgetter := m.reporter.(Forgetter); ok && isForgetter {
		f.Forget(id)
	}
}
