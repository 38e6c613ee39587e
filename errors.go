package edxml

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an Error,
type Kind string

const (
	KindInvalidDataType          Kind = "InvalidDataType"
	KindInvalidObjectValue       Kind = "InvalidObjectValue"
	KindAttributeViolation       Kind = "AttributeViolation"
	KindUnknownAttribute         Kind = "UnknownAttribute"
	KindMissingMandatoryAttr     Kind = "MissingMandatoryAttribute"
	KindSchemaInconsistency      Kind = "SchemaInconsistency"
	KindReporterError            Kind = "ReporterError"
	KindUnsupportedOperation     Kind = "UnsupportedOperation"
	KindProcessingInterrupted    Kind = "ProcessingInterrupted"
)

// sentinels let callers use errors.Is(err, edxml.ErrSchemaInconsistency)
// without inspecting the Kind field directly.
var (
	ErrInvalidDataType       = errors.New(string(KindInvalidDataType))
	ErrInvalidObjectValue    = errors.New(string(KindInvalidObjectValue))
	ErrAttributeViolation    = errors.New(string(KindAttributeViolation))
	ErrUnknownAttribute      = errors.New(string(KindUnknownAttribute))
	ErrMissingMandatoryAttr  = errors.New(string(KindMissingMandatoryAttr))
	ErrSchemaInconsistency   = errors.New(string(KindSchemaInconsistency))
	ErrReporterError         = errors.New(string(KindReporterError))
	ErrUnsupportedOperation  = errors.New(string(KindUnsupportedOperation))
	ErrProcessingInterrupted = errors.New(string(KindProcessingInterrupted))
)

var sentinelByKind = map[Kind]error{
	KindInvalidDataType:       ErrInvalidDataType,
	KindInvalidObjectValue:    ErrInvalidObjectValue,
	KindAttributeViolation:    ErrAttributeViolation,
	KindUnknownAttribute:      ErrUnknownAttribute,
	KindMissingMandatoryAttr:  ErrMissingMandatoryAttr,
	KindSchemaInconsistency:   ErrSchemaInconsistency,
	KindReporterError:         ErrReporterError,
	KindUnsupportedOperation:  ErrUnsupportedOperation,
	KindProcessingInterrupted: ErrProcessingInterrupted,
}

// Error is the error value returned at every core API boundary. Path
// identifies the entity the error concerns, e.g. "eventtype/e/description".
type Error struct {
	Kind  Kind
	Path  string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel error for e's Kind, so that
// errors.Is(err, edxml.ErrSchemaInconsistency) works regardless of Path
// or Cause.
func (e *Error) Is(target error) bool {
	return sentinelByKind[e.Kind] == target
}

// NewError constructs an Error for the given kind and entity path,
// optionally wrapping a lower-level cause.
func NewError(kind Kind, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Cause: cause}
}

// Warning is a non-fatal diagnostic (e.g. an unused object type, or an
// incomplete reporter string) delivered through a side channel distinct
// from errors,
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Message)
}

// WarningSink receives warnings as they are produced. It never halts
// processing.
type WarningSink interface {
	Warn(w Warning)
}

// SliceWarningSink is a WarningSink backed by a slice, for callers who
// don't want to implement the interface themselves.
type SliceWarningSink struct {
	Warnings []Warning
}

func (s *SliceWarningSink) Warn(w Warning) {
	s.Warnings = append(s.Warnings, w)
}

// discardSink is used when no WarningSink is supplied.
type discardSink struct{}

func (discardSink) Warn(Warning) {}

// DiscardWarnings is a WarningSink that drops every warning.
var DiscardWarnings WarningSink = discardSink{}

// Counters accumulates error and warning totals for post-run
// summarization. A Counters value is constructed by the driver and
// threaded explicitly into the registry and stream processor, rather
// than kept as global mutable state.
type Counters struct {
	Errors   int
	Warnings int
}

// RecordError increments the error counter and returns err unchanged, so
// it can be used inline: `return c.RecordError(err)`.
func (c *Counters) RecordError(err error) error {
	if c == nil || err == nil {
		return err
	}
	c.Errors++
	return err
}

// RecordWarning increments the warning counter and forwards w to sink
// (which may be nil, in which case the warning is simply counted).
func (c *Counters) RecordWarning(sink WarningSink, w Warning) {
	if c != nil {
		c.Warnings++
	}
	if sink != nil {
		sink.Warn(w)
	}
}

// Summary renders a one-line human-readable total of errors and
// warnings.
func (c *Counters) Summary() string {
	if c == nil {
		return "0 errors, 0 warnings"
	}
	return fmt.Sprintf("%d errors, %d warnings", c.Errors, c.Warnings)
}
