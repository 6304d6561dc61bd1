// Package grader turns harness status lines into verdicts and an overall
// pass/fail. There is no partial credit.
package grader

import (
	"regexp"
	"strconv"
	"strings"
)

type Status string

const (
	StatusPassed  Status = "Passed"
	StatusFailed  Status = "Failed"
	StatusTimeout Status = "Timeout"
	StatusError   Status = "Error"
)

// HiddenDetail is the detail of failing cases past the disclosure window.
const HiddenDetail = "Hidden Params"

type Verdict struct {
	Case   int
	Status Status
	// Detail is the failure description or error message, if any.
	Detail string
}

var lineRe = regexp.MustCompile(`^Case (\d+): (.*)$`)

// ParseVerdict classifies one harness line. Unrecognized content is an
// Error verdict carrying the line.
func ParseVerdict(line string) Verdict {
	m := lineRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Verdict{Status: StatusError, Detail: line}
	}
	n, _ := strconv.Atoi(m[1])
	body := m[2]

	switch {
	case body == "Passed":
		return Verdict{Case: n, Status: StatusPassed}
	case body == "Timeout!":
		return Verdict{Case: n, Status: StatusTimeout}
	case strings.HasPrefix(body, "Failed"):
		detail := strings.TrimPrefix(body, "Failed")
		detail = strings.TrimLeft(detail, ",: ")
		return Verdict{Case: n, Status: StatusFailed, Detail: detail}
	case strings.HasPrefix(body, "Error"):
		return Verdict{Case: n, Status: StatusError, Detail: strings.TrimSpace(strings.TrimPrefix(body, "Error"))}
	}
	return Verdict{Case: n, Status: StatusError, Detail: body}
}

func ParseVerdicts(lines []string) []Verdict {
	out := make([]Verdict, len(lines))
	for i, l := range lines {
		out[i] = ParseVerdict(l)
	}
	return out
}

// Grade is true iff there is at least one case and every case passed.
func Grade(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if ParseVerdict(l).Status != StatusPassed {
			return false
		}
	}
	return true
}

func (v Verdict) String() string {
	prefix := "Case " + strconv.Itoa(v.Case) + ": "
	switch v.Status {
	case StatusPassed:
		return prefix + "Passed"
	case StatusTimeout:
		return prefix + "Timeout!"
	case StatusFailed:
		if v.Detail == "" {
			return prefix + "Failed"
		}
		return prefix + "Failed, " + v.Detail
	}
	return prefix + "Error " + v.Detail
}
