package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "pyjudge.results.17", Subject("pyjudge", 17))
}

func TestResultJSON(t *testing.T) {
	rt := 0.05
	b, err := json.Marshal(Result{SubmissionID: 1, ProblemID: 2, UserID: 3, IsPass: true, Results: []string{"Case 1: Passed"}, RealTime: &rt})
	require.NoError(t, err)
	assert.JSONEq(t, `{"submission_id":1,"problem_id":2,"user_id":3,"is_pass":true,"results":["Case 1: Passed"],"real_time":0.05,"ram":null}`, string(b))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	require.NoError(t, p.PublishResult(context.Background(), Result{}))
	p.Close()
}
