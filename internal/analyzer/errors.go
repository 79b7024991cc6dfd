package analyzer

import (
	"errors"
	"fmt"
)

// ErrAnalyzer matches every failure reported by an Analyzer.
var ErrAnalyzer = errors.New("analyzer failed")

// Failure stages reported in Error.Op.
const (
	OpScript  = "script"
	OpRun     = "run"
	OpTimeout = "timeout"
	OpParse   = "parse"
)

// Error describes a failed analysis of one file.
type Error struct {
	Path string
	Op   string
	// Output is the tail of the process output, when there was any.
	Output string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("analyze %s: %s: %v", e.Path, e.Op, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Unwrap lets errors.Is match both ErrAnalyzer and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{ErrAnalyzer, e.Err}
}
