package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestMemoryStoreAttachOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	s, err := m.Create(ctx, 7, 1, "def f(): pass")
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.ID)

	res := Result{Results: []string{"Case 1: Passed"}, IsPass: true, RealTime: f(0.05), RAM: f(8.2), RawLog: []byte("raw")}
	require.NoError(t, m.AttachResult(ctx, s.ID, res))
	require.ErrorIs(t, m.AttachResult(ctx, s.ID, res), ErrAlreadyEvaluated)
	require.ErrorIs(t, m.AttachResult(ctx, 99, res), ErrNotFound)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPass)
	assert.Equal(t, []string{"Case 1: Passed"}, got.Results)
	assert.NotNil(t, got.EvaluatedAt)

	raw, err := m.RawLog(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "raw", string(raw))
}

func TestMemoryStoreConcurrentAttach(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	s, err := m.Create(ctx, 1, 1, "x = 1")
	require.NoError(t, err)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.AttachResult(ctx, s.ID, Result{IsPass: true}) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
}

func TestMemoryStoreRankingInputs(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	a, _ := m.Create(ctx, 1, 10, "a")
	b, _ := m.Create(ctx, 2, 10, "b")
	c, _ := m.Create(ctx, 1, 10, "c")
	_, _ = m.Create(ctx, 3, 11, "other problem")

	require.NoError(t, m.AttachResult(ctx, a.ID, Result{IsPass: true, RealTime: f(0.1), RAM: f(9)}))
	require.NoError(t, m.AttachResult(ctx, b.ID, Result{IsPass: false}))
	require.NoError(t, m.AttachResult(ctx, c.ID, Result{IsPass: true, RealTime: f(0.05), RAM: f(10)}))

	passed, err := m.PassedEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, passed, 2)
	assert.Equal(t, a.ID, passed[0].SubmissionID)
	assert.Equal(t, c.ID, passed[1].SubmissionID)

	totals, err := m.Totals(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, totals.Submissions)
	assert.Equal(t, 2, totals.Participants)
}

func TestLogCodec(t *testing.T) {
	raw := []byte("Case 1: Passed\nCase 2: Passed\nCase 3: Passed\nreal 0.05\n")
	packed := compressLog(raw)
	require.NotEmpty(t, packed)

	out, err := decompressLog(packed)
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	assert.Nil(t, compressLog(nil))
	out, err = decompressLog(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
