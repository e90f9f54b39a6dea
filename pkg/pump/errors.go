package pump

import (
	"errors"
	"fmt"
)

// ProcessingError wraps an error raised while an Event travels through a
// Pipeline, recording which component raised it and whether it should be
// treated as a soft (recoverable, warning-only) error.
//
// Any error ends the chain walk for the event that caused it. Soft errors
// then bump a pipeline's warning counter but never flip it into the error
// state; every other error goes to the pipeline's error classifier, which
// either treats it as hard (error counter, error state) or, by returning
// false, handles it like a soft one.
type ProcessingError struct {
	Component string
	Err       error
	Soft      bool
}

func (e *ProcessingError) Error() string {
	if e.Component == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Soft wraps err as a soft ProcessingError attributed to component. Soft
// errors are for expected, per-event failures (a malformed record, a
// lookup miss) that a pipeline author wants visible but not fatal.
func Soft(component string, err error) error {
	if err == nil {
		return nil
	}
	return &ProcessingError{Component: component, Err: err, Soft: true}
}

// Hard wraps err as a hard (default) ProcessingError attributed to
// component.
func Hard(component string, err error) error {
	if err == nil {
		return nil
	}
	return &ProcessingError{Component: component, Err: err, Soft: false}
}

// IsSoft reports whether err (or anything it wraps) is a soft
// ProcessingError.
func IsSoft(err error) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Soft
	}
	return false
}

// ErrDrop is returned by a Processor's Process method (or a Generator's
// Generate method) to discard the current event from the chain without
// treating the discard as an error.
var ErrDrop = errors.New("pump: event dropped")

// ErrNotFound is returned by Lookup implementations when a key has no
// corresponding value, distinct from a lookup-transport error.
var ErrNotFound = errors.New("pump: lookup key not found")

// ConfigError reports an incomplete chain, a duplicate Id, or an
// unresolved Connection/Lookup reference — anything raised at
// construction or startup time rather than while an event is in flight.
// It is always fatal to the pipeline or Service call that produced it.
type ConfigError struct {
	Component string
	Message   string
}

func (e *ConfigError) Error() string {
	if e.Component == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

// NewConfigError returns a ConfigError attributed to component.
func NewConfigError(component, message string) *ConfigError {
	return &ConfigError{Component: component, Message: message}
}

// TransportError wraps a failure surfaced by a connector (a broker
// disconnect, a failed HTTP round trip, a driver error) inside a Source
// cycle. Once it reaches the pipeline it is treated as a processing
// error like any other.
type TransportError struct {
	Connector string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Connector, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a TransportError attributed to
// connector. Returns nil if err is nil.
func NewTransportError(connector string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Connector: connector, Err: err}
}
