package ranking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestRankTwoSubmissions(t *testing.T) {
	passed := []Entry{
		{SubmissionID: 1, RealTime: f(0.10), RAM: f(9.5)},
		{SubmissionID: 2, RealTime: f(0.05), RAM: f(12.0)},
	}
	totals := Totals{Submissions: 5, Participants: 3}

	fast, err := Rank(2, passed, totals)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fast.TimePercentile)
	assert.Equal(t, 50.0, fast.RAMPercentile)

	slow, err := Rank(1, passed, totals)
	require.NoError(t, err)
	assert.Equal(t, 50.0, slow.TimePercentile)
	assert.Equal(t, 100.0, slow.RAMPercentile)
	assert.Equal(t, 2, slow.TotalPassed)
	assert.Equal(t, 5, slow.TotalSubmissions)
	assert.Equal(t, 3, slow.TotalParticipants)
}

func TestPercentileBounds(t *testing.T) {
	for n := 1; n <= 50; n++ {
		assert.Equal(t, 100.0, Percentile(1, n))
		want := math.Round(100*(1-float64(n-1)/float64(n))*100) / 100
		assert.Equal(t, want, Percentile(n, n))
	}
	assert.Equal(t, 33.33, Percentile(3, 3))
	assert.Equal(t, 0.0, Percentile(1, 0))
}

func TestRankNotPassed(t *testing.T) {
	_, err := Rank(9, []Entry{{SubmissionID: 1, RealTime: f(1), RAM: f(1)}}, Totals{})
	require.ErrorIs(t, err, ErrNotPassed)
}

func TestRankTiesKeepInputOrder(t *testing.T) {
	passed := []Entry{
		{SubmissionID: 1, RealTime: f(0.2), RAM: f(10)},
		{SubmissionID: 2, RealTime: f(0.2), RAM: f(10)},
		{SubmissionID: 3, RealTime: f(0.2), RAM: f(10)},
	}
	first, err := Rank(1, passed, Totals{})
	require.NoError(t, err)
	last, err := Rank(3, passed, Totals{})
	require.NoError(t, err)

	assert.Equal(t, 100.0, first.TimePercentile)
	assert.Equal(t, 33.33, last.TimePercentile)
}

func TestRankMissingMetricSortsLast(t *testing.T) {
	passed := []Entry{
		{SubmissionID: 1, RealTime: f(0.3), RAM: nil},
		{SubmissionID: 2, RealTime: f(0.4), RAM: f(50)},
	}
	s, err := Rank(1, passed, Totals{})
	require.NoError(t, err)
	assert.Equal(t, 50.0, s.RAMPercentile)
	assert.Equal(t, 100.0, s.TimePercentile)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Entry{
		{SubmissionID: 1, RealTime: f(0.3), RAM: f(8)},
		{SubmissionID: 2, RealTime: nil, RAM: f(9)},
		{SubmissionID: 3, RealTime: f(0.1), RAM: f(7)},
	})
	assert.Equal(t, []float64{0.3, 0.1}, s.ExecutionTimes)
	assert.Equal(t, []float64{8, 7}, s.MemoryUsages)

	empty := Summarize(nil)
	assert.NotNil(t, empty.ExecutionTimes)
}
