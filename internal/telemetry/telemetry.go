// Package telemetry recovers per-case status lines and resource usage from
// the combined output of a sandbox run.
package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// TrailerPrefix starts the single machine-readable line the supervisor
// prints after the harness exits.
const TrailerPrefix = "@@pyjudge "

var (
	caseLine  = regexp.MustCompile(`^Case \d+:.*`)
	realLine  = regexp.MustCompile(`(?m)^real\s+(\d+(?:\.\d+)?)\s*$`)
	memLine   = regexp.MustCompile(`(?m)^memory\s+(\d+)\s*$`)
	bytesInMi = float64(1 << 20)
)

type Report struct {
	CaseLines []string
	RealTime  *float64
	RAM       *float64
	// ExitCode is only known when the trailer was present.
	ExitCode *int
}

type trailer struct {
	Real   *float64 `json:"real"`
	Memory *int64   `json:"memory"`
	Exit   *int     `json:"exit"`
}

// Parse never fails: missing telemetry is reported as nil fields.
func Parse(raw []byte) Report {
	var r Report
	var last *trailer

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case caseLine.MatchString(line):
			r.CaseLines = append(r.CaseLines, line)
		case strings.HasPrefix(line, TrailerPrefix):
			var t trailer
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, TrailerPrefix)), &t); err == nil {
				last = &t
			}
		}
	}

	if last != nil {
		r.RealTime = last.Real
		if last.Memory != nil {
			r.RAM = toMiB(*last.Memory)
		}
		r.ExitCode = last.Exit
	}

	// Older images print only the human footer; its order is not fixed.
	if r.RealTime == nil {
		if m := realLine.FindSubmatch(raw); m != nil {
			if v, err := strconv.ParseFloat(string(m[1]), 64); err == nil {
				r.RealTime = &v
			}
		}
	}
	if r.RAM == nil {
		if m := memLine.FindSubmatch(raw); m != nil {
			if v, err := strconv.ParseInt(string(m[1]), 10, 64); err == nil {
				r.RAM = toMiB(v)
			}
		}
	}
	return r
}

// toMiB converts bytes to MiB rounded to two decimals. Zero is treated as
// unknown.
func toMiB(b int64) *float64 {
	if b <= 0 {
		return nil
	}
	v := math.Round(float64(b)/bytesInMi*100) / 100
	return &v
}
