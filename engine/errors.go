package engine

import "errors"

var (
	// ErrNotFound is returned when a table cannot find an id.
	//
	// This is an engine-layer sentinel used internally; the geostore package
	// may translate it into its public error contract.
	ErrNotFound = errors.New("not found")

	// ErrTableClosed is returned for operations on a closed table.
	ErrTableClosed = errors.New("table closed")

	// ErrPoolClosed is returned when work is submitted to a closed pool.
	ErrPoolClosed = errors.New("worker pool closed")
)
