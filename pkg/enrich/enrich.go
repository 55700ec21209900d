// Package enrich models optional data attached to a primary result. A failed
// enrichment is reported as skipped and never fails its caller.
package enrich

// Result is either a value or a skip with its reason.
type Result[T any] struct {
	Value   T
	Skipped bool
	Reason  string
}

// Ok returns a populated result.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Skip returns an empty result with a reason.
func Skip[T any](reason string) Result[T] {
	return Result[T]{Skipped: true, Reason: reason}
}

// Try runs fn and converts an error into a skipped result.
func Try[T any](fn func() (T, error)) Result[T] {
	v, err := fn()
	if err != nil {
		return Skip[T](err.Error())
	}
	return Ok(v)
}

// Or returns the value, or fallback when skipped.
func (r Result[T]) Or(fallback T) T {
	if r.Skipped {
		return fallback
	}
	return r.Value
}
