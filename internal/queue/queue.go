package queue

import (
	"errors"
	"sync"

	"github.com/itstheanurag/pyjudge/internal/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	ErrQueueFull = errors.New("evaluation queue is full")
	ErrInFlight  = errors.New("submission is already queued or being evaluated")
	ErrClosed    = errors.New("evaluation queue is closed")
)

type Job struct {
	SubmissionID int64
}

// Manager admits submissions into a bounded queue. A submission stays in
// the in-flight set from TrySubmit until the worker calls Release.
type Manager struct {
	jobQueue chan *Job
	inFlight *xsync.MapOf[int64, struct{}]

	mu     sync.RWMutex
	closed bool
}

func NewManager(capacity int) *Manager {
	return &Manager{
		jobQueue: make(chan *Job, capacity),
		inFlight: xsync.NewMapOf[int64, struct{}](),
	}
}

// TrySubmit never blocks.
func (m *Manager) TrySubmit(job *Job) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		metrics.QueueRejections.WithLabelValues("closed").Inc()
		return ErrClosed
	}

	if _, loaded := m.inFlight.LoadOrStore(job.SubmissionID, struct{}{}); loaded {
		metrics.QueueRejections.WithLabelValues("in_flight").Inc()
		return ErrInFlight
	}

	select {
	case m.jobQueue <- job:
		m.UpdateQueueMetric()
		return nil
	default:
		m.inFlight.Delete(job.SubmissionID)
		metrics.QueueRejections.WithLabelValues("full").Inc()
		return ErrQueueFull
	}
}

func (m *Manager) Release(submissionID int64) {
	m.inFlight.Delete(submissionID)
}

func (m *Manager) InFlight(submissionID int64) bool {
	_, ok := m.inFlight.Load(submissionID)
	return ok
}

func (m *Manager) NextJob() <-chan *Job {
	return m.jobQueue
}

// Close stops admission. Jobs already queued can still be drained.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.jobQueue)
	}
}

func (m *Manager) Len() int {
	return len(m.jobQueue)
}

func (m *Manager) UpdateQueueMetric() {
	metrics.QueueDepth.Set(float64(len(m.jobQueue)))
}
