package types

import "fmt"

// Status classifies the outcome of an inventory operation
type Status int

const (
	// StatusOK - the operation succeeded and Value is meaningful
	StatusOK Status = iota
	// StatusNotFound - the target does not exist
	StatusNotFound
	// StatusRejected - the request was refused before reaching any store
	StatusRejected
	// StatusFailed - transport or storage failure, Err holds the cause
	StatusFailed
)

// String returns string representation of status
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseStatus parses the wire form of a status
func ParseStatus(s string) (Status, error) {
	switch s {
	case "ok":
		return StatusOK, nil
	case "not_found":
		return StatusNotFound, nil
	case "rejected":
		return StatusRejected, nil
	case "failed":
		return StatusFailed, nil
	default:
		return StatusFailed, fmt.Errorf("unknown status: %q", s)
	}
}

// Result carries the value of an inventory operation together with its status.
//
// Value always holds the sentinel a caller would observe for a missing object
// (nil, false, empty slice, 0) unless Status is StatusOK, so callers that only
// look at Value see the same thing for "not found" and "transport failure".
type Result[T any] struct {
	Value  T
	Status Status
	Err    error
}

// OK reports whether the operation succeeded
func (r Result[T]) OK() bool {
	return r.Status == StatusOK
}

// OKResult wraps a successful value
func OKResult[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

// NotFoundResult returns the not-found sentinel
func NotFoundResult[T any]() Result[T] {
	return Result[T]{Status: StatusNotFound}
}

// RejectedResult returns the rejected sentinel
func RejectedResult[T any]() Result[T] {
	return Result[T]{Status: StatusRejected}
}

// FailedResult returns the failure sentinel carrying err
func FailedResult[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailed, Err: err}
}

// BoolResult maps a store outcome to a boolean result
func BoolResult(ok bool) Result[bool] {
	if ok {
		return OKResult(true)
	}
	return NotFoundResult[bool]()
}

// ValueResult returns OK for non-nil pointers and not-found otherwise
func ValueResult[T any](v *T) Result[*T] {
	if v == nil {
		return NotFoundResult[*T]()
	}
	return OKResult(v)
}
