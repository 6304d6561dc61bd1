// Package ranking computes how a passed submission compares with every other
// passed submission of the same problem.
package ranking

import (
	"errors"
	"math"
	"sort"
)

var ErrNotPassed = errors.New("submission did not pass the test cases")

// Entry is one passed submission. Absent metrics rank last.
type Entry struct {
	SubmissionID int64
	RealTime     *float64
	RAM          *float64
}

// Totals are counts over all submissions of the problem, passed or not.
type Totals struct {
	Submissions  int
	Participants int
}

type Standing struct {
	RAMPercentile     float64 `json:"ram_percentile"`
	TimePercentile    float64 `json:"time_percentile"`
	TotalPassed       int     `json:"total_passed_submissions"`
	TotalSubmissions  int     `json:"total_submissions"`
	TotalParticipants int     `json:"total_participants"`
}

// Rank places submissionID among passed. Order of passed breaks ties.
func Rank(submissionID int64, passed []Entry, totals Totals) (Standing, error) {
	if indexOf(passed, submissionID) < 0 {
		return Standing{}, ErrNotPassed
	}
	total := len(passed)

	return Standing{
		RAMPercentile:     Percentile(rankBy(passed, submissionID, func(e Entry) *float64 { return e.RAM }), total),
		TimePercentile:    Percentile(rankBy(passed, submissionID, func(e Entry) *float64 { return e.RealTime }), total),
		TotalPassed:       total,
		TotalSubmissions:  totals.Submissions,
		TotalParticipants: totals.Participants,
	}, nil
}

// Percentile maps a 1-based rank to 100*(1-(rank-1)/total), two decimals.
func Percentile(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := 100 * (1 - float64(rank-1)/float64(total))
	return math.Round(p*100) / 100
}

func rankBy(entries []Entry, id int64, metric func(Entry) *float64) int {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(metric(sorted[i]), metric(sorted[j]))
	})
	return indexOf(sorted, id) + 1
}

func less(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	}
	return *a < *b
}

func indexOf(entries []Entry, id int64) int {
	for i, e := range entries {
		if e.SubmissionID == id {
			return i
		}
	}
	return -1
}

// ExecutionSummary lists the metrics of passed submissions that have both.
type ExecutionSummary struct {
	ExecutionTimes []float64 `json:"execution_times"`
	MemoryUsages   []float64 `json:"memory_usages"`
}

func Summarize(passed []Entry) ExecutionSummary {
	s := ExecutionSummary{ExecutionTimes: []float64{}, MemoryUsages: []float64{}}
	for _, e := range passed {
		if e.RealTime == nil || e.RAM == nil {
			continue
		}
		s.ExecutionTimes = append(s.ExecutionTimes, *e.RealTime)
		s.MemoryUsages = append(s.MemoryUsages, *e.RAM)
	}
	return s
}
