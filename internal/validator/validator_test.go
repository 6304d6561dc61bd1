package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoSumTemplate = `def findTwoSum(nums: list[int], target: int) -> list[int]:
    """Return the indices of the two numbers adding up to target."""
    pass
`

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		code     string
		kind     Kind
		fn       string
		expected []string
	}{
		{
			name:     "matching signature",
			template: twoSumTemplate,
			code: `def findTwoSum(nums, target):
    seen = {}
    for i, n in enumerate(nums):
        if target - n in seen:
            return [seen[target - n], i]
        seen[n] = i
`,
		},
		{
			name:     "extra helpers are allowed",
			template: twoSumTemplate,
			code: `import functools

def helper(x):
    return x

@functools.lru_cache
def findTwoSum(nums, target):
    return [0, 1]
`,
		},
		{
			name:     "missing function",
			template: twoSumTemplate,
			code:     "def twoSum(nums, target):\n    return []\n",
			kind:     KindMissingFunction,
			fn:       "findTwoSum",
		},
		{
			name:     "renamed parameter",
			template: twoSumTemplate,
			code:     "def findTwoSum(numbers, target):\n    return []\n",
			kind:     KindArityMismatch,
			fn:       "findTwoSum",
			expected: []string{"nums", "target"},
		},
		{
			name:     "swapped parameters",
			template: twoSumTemplate,
			code:     "def findTwoSum(target, nums):\n    return []\n",
			kind:     KindArityMismatch,
			fn:       "findTwoSum",
			expected: []string{"nums", "target"},
		},
		{
			name:     "extra parameter",
			template: twoSumTemplate,
			code:     "def findTwoSum(nums, target, k=2):\n    return []\n",
			kind:     KindArityMismatch,
			fn:       "findTwoSum",
			expected: []string{"nums", "target"},
		},
		{
			name:     "nested definition does not count",
			template: twoSumTemplate,
			code:     "class Solution:\n    def findTwoSum(self, nums, target):\n        return []\n",
			kind:     KindMissingFunction,
			fn:       "findTwoSum",
		},
		{
			name:     "syntax error",
			template: twoSumTemplate,
			code:     "def findTwoSum(nums, target)\n    return []\n",
			kind:     KindSyntax,
		},
		{
			name:     "empty code",
			template: twoSumTemplate,
			code:     "  \n\n",
			kind:     KindSyntax,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.template, tc.code)
			if tc.kind == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tc.kind, verr.Kind)
			assert.Equal(t, tc.fn, verr.Name)
			assert.Equal(t, tc.expected, verr.Expected)
		})
	}
}

func TestValidateCompileTimeErrors(t *testing.T) {
	const fn = "def findTwoSum(nums, target):\n    return [0, 1]\n"

	rejected := []struct {
		name string
		code string
		msg  string
	}{
		{"python 2 print", fn + "print \"hi\"\n", "Missing parentheses in call to 'print'"},
		{"python 2 exec", fn + "exec \"x = 1\"\n", "Missing parentheses in call to 'exec'"},
		{"non-default after default", "def findTwoSum(nums=None, target):\n    return []\n", "non-default argument follows default argument"},
		{"non-default after default in helper", fn + "def helper(a=1, /, b):\n    pass\n", "non-default argument follows default argument"},
		{"lambda parameter order", fn + "g = lambda a=1, b: a\n", "non-default argument follows default argument"},
		{"module-level return", fn + "return 1\n", "'return' outside function"},
		{"module-level break", fn + "break\n", "'break' outside loop"},
		{"module-level continue", fn + "if True:\n    continue\n", "'continue' not properly in loop"},
		{"module-level yield", fn + "yield 1\n", "'yield' outside function"},
		{"return in class body", fn + "class A:\n    return 1\n", "'return' outside function"},
		{"break in loop else", fn + "for i in range(3):\n    pass\nelse:\n    break\n", "'break' outside loop"},
		{"break in function inside loop", "for i in range(3):\n    def findTwoSum(nums, target):\n        break\n", "'break' outside loop"},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(twoSumTemplate, tc.code)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, KindSyntax, verr.Kind)
			assert.Contains(t, verr.Error(), tc.msg)
			assert.Contains(t, verr.Error(), "line ")
		})
	}

	accepted := []struct {
		name string
		code string
	}{
		{"print call", fn + "print(\"hi\")\n"},
		{"break and continue in loops", fn + "for i in range(3):\n    if i:\n        continue\n    while True:\n        break\n"},
		{"generator", fn + "def gen():\n    yield 1\n"},
		{"keyword-only after default", "def findTwoSum(nums, target=0, *, k, m=1):\n    return []\n"},
		{"return in nested function", fn + "class A:\n    def m(self):\n        for i in range(2):\n            return i\n"},
		{"lambda defaults", fn + "g = lambda a, b=1: a + b\n"},
	}
	for _, tc := range accepted {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, Validate(twoSumTemplate, tc.code))
		})
	}
}

func TestValidateErrorMessages(t *testing.T) {
	err := Validate(twoSumTemplate, "def other():\n    pass\n")
	require.EqualError(t, err, "Function 'findTwoSum' is missing in the submission.")

	err = Validate(twoSumTemplate, "def findTwoSum(a, b):\n    pass\n")
	require.EqualError(t, err, "Function 'findTwoSum' has incorrect parameters. Expected ['nums', 'target'].")

	err = Validate(twoSumTemplate, "def findTwoSum(nums, target):\n    return [\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Syntax Error:")
	assert.Contains(t, err.Error(), "line ")
}

func TestValidateBadTemplate(t *testing.T) {
	err := Validate("def broken(:\n", "def broken():\n    pass\n")
	require.ErrorIs(t, err, ErrBadTemplate)
}

func TestSignatures(t *testing.T) {
	src := `def a(x, y=1, *args, z, **kw):
    pass

def b(p, /, q, *, r):
    pass

async def c(u):
    pass

def a(m):
    pass
`
	sigs, err := Signatures(src)
	require.NoError(t, err)
	assert.Equal(t, []Signature{
		{Name: "a", Params: []string{"m"}},
		{Name: "b", Params: []string{"q"}},
	}, sigs)
}

func TestCountTestCases(t *testing.T) {
	harness := `from submission import findTwoSum as user_submission

test_cases = [
    {"input": ([1, 2, 3, 4, 5], 3), "expected": [0, 1]},
    # a comment in the middle
    {"input": ([3, 3], 6), "expected": [0, 1]},
    {"input": ([2, 7, 11, 15], 9), "expected": [0, 1]},
]
`
	n, ok := CountTestCases(harness)
	require.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = CountTestCases("cases = load()\n")
	assert.False(t, ok)
}
