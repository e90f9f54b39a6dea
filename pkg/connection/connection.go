// Package connection defines the long-lived external-system handle that
// pipeline stages reference by Id rather than holding directly, grounded
// on the minimal contract of the original `abc/connection.py`: a
// Connection is little more than an Id plus an open/close lifecycle the
// Service drives independently of any one pipeline's lifetime.
package connection

import "context"

// Connection is a long-lived handle to an external system — an HTTP
// client, a database pool, a broker client — shared by many pipeline
// stages and opaque to the pipeline runtime itself. Concrete connectors
// embed whatever client state they need and implement this contract.
type Connection interface {
	// Id returns the Service-unique identifier this Connection was
	// registered under.
	Id() string

	// Open establishes the underlying resource. The Service calls Open
	// once, before any pipeline referencing this Connection starts.
	Open(ctx context.Context) error

	// Close releases the underlying resource. The Service calls Close
	// once, after every pipeline referencing this Connection has
	// stopped.
	Close(ctx context.Context) error
}

// Base supplies the Id() method so concrete connections only need to
// implement Open/Close, the same minimal-base-class convention the
// original Connection abstract class used for its ConfigObject plumbing.
type Base struct {
	id string
}

// NewBase returns a Base stamped with id.
func NewBase(id string) Base { return Base{id: id} }

// Id returns the Connection's registered identifier.
func (b Base) Id() string { return b.id }
