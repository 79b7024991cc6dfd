package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Result is the outcome of a successful analysis.
type Result struct {
	Key   string  `json:"key"`
	Tempo float64 `json:"tempo"`
}

var (
	errNoOutput = errors.New("no output")
	errEmptyKey = errors.New("empty key")
	errTempo    = errors.New("tempo must be a positive number")
)

// ParseOutput reads the result from the last non-empty line of the
// analyzer's stdout. Anything printed before it is ignored.
func ParseOutput(out []byte) (Result, error) {
	var last []byte
	for _, line := range bytes.Split(out, []byte("\n")) {
		if line = bytes.TrimSpace(line); len(line) > 0 {
			last = line
		}
	}
	if last == nil {
		return Result{}, errNoOutput
	}

	var raw struct {
		Key   *string  `json:"key"`
		Tempo *float64 `json:"tempo"`
	}
	if err := json.Unmarshal(last, &raw); err != nil {
		return Result{}, fmt.Errorf("decode %q: %w", truncate(string(last), 120), err)
	}
	if raw.Key == nil || strings.TrimSpace(*raw.Key) == "" {
		return Result{}, errEmptyKey
	}
	if raw.Tempo == nil || math.IsNaN(*raw.Tempo) || math.IsInf(*raw.Tempo, 0) || *raw.Tempo <= 0 {
		return Result{}, errTempo
	}

	return Result{Key: strings.TrimSpace(*raw.Key), Tempo: *raw.Tempo}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
