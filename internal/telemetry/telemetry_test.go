package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrailer(t *testing.T) {
	raw := "Case 1: Passed\nCase 2: Failed, Hidden Params\nCase 3: Timeout!\n" +
		"real 0.05\nmemory 8298496\n" +
		`@@pyjudge {"real": 0.05, "memory": 8298496, "exit": 0}` + "\n"

	r := Parse([]byte(raw))
	assert.Equal(t, []string{"Case 1: Passed", "Case 2: Failed, Hidden Params", "Case 3: Timeout!"}, r.CaseLines)
	require.NotNil(t, r.RealTime)
	assert.Equal(t, 0.05, *r.RealTime)
	require.NotNil(t, r.RAM)
	assert.Equal(t, 7.91, *r.RAM)
	require.NotNil(t, r.ExitCode)
	assert.Equal(t, 0, *r.ExitCode)
}

func TestParseLegacyFooter(t *testing.T) {
	raw := "Case 1: Passed\nCase 2: Passed\nmemory 1499136\nreal 0.12\nuser 0.02\nsys 0.00\n"

	r := Parse([]byte(raw))
	assert.Len(t, r.CaseLines, 2)
	require.NotNil(t, r.RealTime)
	assert.Equal(t, 0.12, *r.RealTime)
	require.NotNil(t, r.RAM)
	assert.Equal(t, 1.43, *r.RAM)
	assert.Nil(t, r.ExitCode)
}

func TestParseMissingTelemetry(t *testing.T) {
	r := Parse([]byte("Case 1: Error division by zero\n"))
	assert.Equal(t, []string{"Case 1: Error division by zero"}, r.CaseLines)
	assert.Nil(t, r.RealTime)
	assert.Nil(t, r.RAM)

	r = Parse(nil)
	assert.Empty(t, r.CaseLines)
	assert.Nil(t, r.RealTime)
	assert.Nil(t, r.RAM)
}

func TestParseMalformedTrailerFallsBack(t *testing.T) {
	raw := "Case 1: Passed\n@@pyjudge {not json\nreal 1.50\n"

	r := Parse([]byte(raw))
	require.NotNil(t, r.RealTime)
	assert.Equal(t, 1.5, *r.RealTime)
	assert.Nil(t, r.RAM)
}

func TestParseNullMemoryInTrailer(t *testing.T) {
	r := Parse([]byte(`@@pyjudge {"real": 0.3, "memory": null, "exit": 0}` + "\n"))
	require.NotNil(t, r.RealTime)
	assert.Nil(t, r.RAM)
}

func TestParseIgnoresLookalikes(t *testing.T) {
	raw := "Traceback: Case 1: Passed\nsurreal 9.99\nCase 1: Passed\n"

	r := Parse([]byte(raw))
	assert.Equal(t, []string{"Case 1: Passed"}, r.CaseLines)
	assert.Nil(t, r.RealTime)
}

func TestParseFooterPermutationIsIdempotent(t *testing.T) {
	cases := "Case 1: Passed\nCase 2: Failed, Input: ([1],), Expected: 1, Got: 2\n"
	footer := []string{"real 0.40", "memory 10485760", "user 0.10", "sys 0.01"}

	want := Parse([]byte(cases + strings.Join(footer, "\n")))
	for _, perm := range permutations(footer) {
		raw := []byte(cases + strings.Join(perm, "\n") + "\n")
		got := Parse(raw)
		assert.Equal(t, want, got)
		assert.Equal(t, got, Parse(raw))
	}
	require.NotNil(t, want.RAM)
	assert.Equal(t, 10.0, *want.RAM)
}

func permutations(in []string) [][]string {
	if len(in) <= 1 {
		return [][]string{append([]string(nil), in...)}
	}
	var out [][]string
	for i := range in {
		rest := make([]string, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]string{in[i]}, p...))
		}
	}
	return out
}
