package store

import (
	"context"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/itstheanurag/pyjudge/internal/ranking"
)

// MemoryStore keeps everything in process. Results are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[int64]*Submission
	logs   map[int64][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[int64]*Submission),
		logs: make(map[int64][]byte),
	}
}

func (m *MemoryStore) Create(ctx context.Context, userID, problemID int64, code string) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s := &Submission{
		ID:        m.nextID,
		UserID:    userID,
		ProblemID: problemID,
		Code:      code,
		CreatedAt: time.Now(),
	}
	m.subs[s.ID] = s
	return *s, nil
}

func (m *MemoryStore) Get(ctx context.Context, id int64) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subs[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	out := *s
	out.Results = append([]string(nil), s.Results...)
	return out, nil
}

func (m *MemoryStore) AttachResult(ctx context.Context, id int64, res Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subs[id]
	if !ok {
		return ErrNotFound
	}
	if s.EvaluatedAt != nil {
		return ErrAlreadyEvaluated
	}
	now := time.Now()
	s.Results = append([]string(nil), res.Results...)
	s.IsPass = res.IsPass
	s.RealTime = res.RealTime
	s.RAM = res.RAM
	s.EvaluatedAt = &now
	m.logs[id] = append([]byte(nil), res.RawLog...)
	return nil
}

func (m *MemoryStore) RawLog(ctx context.Context, id int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.subs[id]; !ok {
		return nil, ErrNotFound
	}
	return m.logs[id], nil
}

func (m *MemoryStore) PassedEntries(ctx context.Context, problemID int64) ([]ranking.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ranking.Entry
	for _, s := range m.subs {
		if s.ProblemID == problemID && s.IsPass {
			out = append(out, ranking.Entry{SubmissionID: s.ID, RealTime: s.RealTime, RAM: s.RAM})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmissionID < out[j].SubmissionID })
	return out, nil
}

func (m *MemoryStore) Totals(ctx context.Context, problemID int64) (ranking.Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := mapset.NewThreadUnsafeSet[int64]()
	var t ranking.Totals
	for _, s := range m.subs {
		if s.ProblemID != problemID {
			continue
		}
		t.Submissions++
		users.Add(s.UserID)
	}
	t.Participants = users.Cardinality()
	return t, nil
}
