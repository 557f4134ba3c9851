// Package objects defines the shell's result object model.
//
// Pipelines stream untyped objects. This package provides the one-layer
// dynamic wrapper commands may put around a value, the coercion rules the
// executor applies when a caller asks for a string or boolean result, the
// ErrorRecord carried on pipeline error streams, and the severe-failure
// classification that must never be swallowed by broad error handling.
//
// # Coercion
//
// CoerceString takes the first result object, unwraps one layer of Wrapped,
// and applies the value's native string conversion. CoerceBool treats more
// than one result object as true; a single result is judged by Truthy.
//
// # ErrorRecord
//
// ErrorRecord ties a stage failure to the stage and pipeline that produced
// it. It implements error and serializes cleanly to JSON and YAML:
//
//	rec := objects.NewErrorRecord(err, "upper", pipelineID)
package objects

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wrapped is one layer of dynamic wrapping around a result value. Commands
// that decorate their output (type names, display hints) wrap the base value;
// coercion unwraps exactly one layer.
type Wrapped struct {
	Value interface{}
}

// Wrap puts one layer of wrapping around v.
func Wrap(v interface{}) Wrapped {
	return Wrapped{Value: v}
}

// Unwrap removes one layer of Wrapped, by value or by pointer. Any other
// value is returned unchanged.
func Unwrap(v interface{}) interface{} {
	switch w := v.(type) {
	case Wrapped:
		return w.Value
	case *Wrapped:
		if w == nil {
			return nil
		}
		return w.Value
	default:
		return v
	}
}

// CoerceString converts a result set to a string: the first object is
// unwrapped one layer and converted with its native string conversion.
// An empty result set yields the empty string.
func CoerceString(results []interface{}) string {
	if len(results) == 0 {
		return ""
	}
	v := Unwrap(results[0])
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

// CoerceBool converts a result set to a boolean: more than one object is
// true, an empty set is false, and a single object is judged by Truthy after
// unwrapping one layer.
func CoerceBool(results []interface{}) bool {
	if len(results) > 1 {
		return true
	}
	if len(results) == 0 {
		return false
	}
	return Truthy(Unwrap(results[0]))
}

// Truthy applies the shell's truthiness rules to a single value: nil is
// false, booleans are themselves, numbers are true when non-zero, strings
// when non-empty, and everything else is true.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int8:
		return t != 0
	case int16:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint:
		return t != 0
	case uint8:
		return t != 0
	case uint16:
		return t != 0
	case uint32:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

// ErrorRecord represents a stage failure with its pipeline context.
// It flows on the Error stream and through the async error serializer.
type ErrorRecord struct {
	Message    string    `json:"message" yaml:"message"`
	Stage      string    `json:"stage,omitempty" yaml:"stage,omitempty"`
	PipelineID uuid.UUID `json:"pipelineId" yaml:"pipelineId"`
	Time       time.Time `json:"time" yaml:"time"`

	err error
}

// NewErrorRecord creates an ErrorRecord for err raised by the named stage.
func NewErrorRecord(err error, stage string, pipelineID uuid.UUID) *ErrorRecord {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ErrorRecord{
		Message:    msg,
		Stage:      stage,
		PipelineID: pipelineID,
		Time:       time.Now(),
		err:        err,
	}
}

// Error implements the error interface.
func (r *ErrorRecord) Error() string {
	if r.Stage != "" {
		return fmt.Sprintf("%s: %s", r.Stage, r.Message)
	}
	return r.Message
}

// Unwrap returns the underlying error.
func (r *ErrorRecord) Unwrap() error {
	return r.err
}

// SevereError marks an unrecoverable condition (resource exhaustion, corrupt
// process state) that must propagate immediately. Handlers that otherwise
// capture failures check IsSevere first and re-raise.
type SevereError struct {
	Reason string
	Err    error
}

// Severe wraps err as a SevereError.
func Severe(reason string, err error) *SevereError {
	return &SevereError{Reason: reason, Err: err}
}

// Error implements the error interface.
func (e *SevereError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("severe: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("severe: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *SevereError) Unwrap() error {
	return e.Err
}

// IsSevere reports whether err carries a SevereError anywhere in its chain.
func IsSevere(err error) bool {
	var se *SevereError
	return errors.As(err, &se)
}
