package grader

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		line string
		want Verdict
	}{
		{"Case 1: Passed", Verdict{Case: 1, Status: StatusPassed}},
		{"Case 2: Timeout!", Verdict{Case: 2, Status: StatusTimeout}},
		{"Case 3: Failed, Input: ([1, 2],), Expected: 3, Got: 4", Verdict{Case: 3, Status: StatusFailed, Detail: "Input: ([1, 2],), Expected: 3, Got: 4"}},
		{"Case 4: Failed, Hidden Params", Verdict{Case: 4, Status: StatusFailed, Detail: HiddenDetail}},
		{"Case 5: Error division by zero", Verdict{Case: 5, Status: StatusError, Detail: "division by zero"}},
		{"Case 6: something else", Verdict{Case: 6, Status: StatusError, Detail: "something else"}},
		{"garbage", Verdict{Status: StatusError, Detail: "garbage"}},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseVerdict(tc.line))
		})
	}
}

func TestVerdictStringRoundTrip(t *testing.T) {
	for _, line := range []string{
		"Case 1: Passed",
		"Case 2: Timeout!",
		"Case 3: Failed, Hidden Params",
		"Case 4: Error boom",
	} {
		assert.Equal(t, line, ParseVerdict(line).String())
	}
}

func TestGrade(t *testing.T) {
	assert.True(t, Grade([]string{"Case 1: Passed", "Case 2: Passed"}))
	assert.False(t, Grade([]string{"Case 1: Passed", "Case 2: Timeout!"}))
	assert.False(t, Grade([]string{"Case 1: Error boom"}))
	assert.False(t, Grade(nil), "no verdicts is not a pass")

	// A failure whose detail mentions the word must not count as a pass.
	assert.False(t, Grade([]string{"Case 1: Failed, Input: ('Passed',), Expected: 1, Got: 2"}))
}

func TestGradeProperty(t *testing.T) {
	lines := map[Status]string{
		StatusPassed:  "Passed",
		StatusFailed:  "Failed, Hidden Params",
		StatusTimeout: "Timeout!",
		StatusError:   "Error oops",
	}
	statuses := []Status{StatusPassed, StatusFailed, StatusTimeout, StatusError}
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(12)
		seq := make([]string, n)
		allPassed := true
		for i := range seq {
			s := StatusPassed
			if rng.Intn(4) == 0 {
				s = statuses[rng.Intn(len(statuses))]
			}
			if s != StatusPassed {
				allPassed = false
			}
			seq[i] = "Case " + strconv.Itoa(i+1) + ": " + lines[s]
		}
		assert.Equal(t, allPassed, Grade(seq), "%v", seq)
		assert.Len(t, ParseVerdicts(seq), n)
	}
}
