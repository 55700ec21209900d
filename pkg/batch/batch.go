// Package batch runs independent operations best-effort and reports which
// ones failed.
package batch

import (
	"context"
	"fmt"
)

// Op is one unit of work identified for reporting.
type Op struct {
	ID  string
	Run func(ctx context.Context) error
}

// Failure records an operation that returned an error.
type Failure struct {
	ID  string
	Err error
}

// Summary is the outcome of Run.
type Summary struct {
	Attempted int
	Succeeded int
	Failures  []Failure
}

// OK reports whether every operation succeeded.
func (s Summary) OK() bool { return len(s.Failures) == 0 }

// Err returns nil when every operation succeeded, otherwise an error naming
// the failed operation count and the first failure.
func (s Summary) Err() error {
	if s.OK() {
		return nil
	}
	first := s.Failures[0]
	return fmt.Errorf("%d of %d operations failed, first %s: %w", len(s.Failures), s.Attempted, first.ID, first.Err)
}

// Merge adds o into s.
func (s *Summary) Merge(o Summary) {
	s.Attempted += o.Attempted
	s.Succeeded += o.Succeeded
	s.Failures = append(s.Failures, o.Failures...)
}

// Run executes ops sequentially. A failing op never stops the ones after it.
// A cancelled context marks the remaining ops as failed without running them.
func Run(ctx context.Context, ops []Op) Summary {
	var s Summary
	for _, op := range ops {
		s.Attempted++
		if err := ctx.Err(); err != nil {
			s.Failures = append(s.Failures, Failure{ID: op.ID, Err: err})
			continue
		}
		if err := op.Run(ctx); err != nil {
			s.Failures = append(s.Failures, Failure{ID: op.ID, Err: err})
			continue
		}
		s.Succeeded++
	}
	return s
}
