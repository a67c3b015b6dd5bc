package geostore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/geostore/bolt"
	"github.com/hupe1980/geostore/engine"
	"github.com/hupe1980/geostore/model"
	"github.com/hupe1980/geostore/strtable"
	"github.com/hupe1980/geostore/tagcodec"
)

var (
	// ErrNotFound is returned when an entity id has no record.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// ErrInvalidCoordinate indicates a latitude or longitude outside the valid
// range.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidCoordinate struct {
	Coord model.GeoCoord
	cause error
}

func (e *ErrInvalidCoordinate) Error() string {
	return fmt.Sprintf("invalid coordinate: lat=%d lon=%d (decimicro-degrees)", e.Coord.DecimicroLat, e.Coord.DecimicroLon)
}

func (e *ErrInvalidCoordinate) Unwrap() error { return e.cause }

// ErrTagEncoding indicates a tag that could not be encoded, typically because
// the string dictionary is full.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrTagEncoding struct {
	Key   string
	Value string
	cause error
}

func (e *ErrTagEncoding) Error() string {
	return fmt.Sprintf("cannot encode tag %q=%q", e.Key, e.Value)
}

func (e *ErrTagEncoding) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, engine.ErrNotFound) || errors.Is(err, bolt.ErrNotFound) || errors.Is(err, strtable.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Closed-store unification.
	if errors.Is(err, engine.ErrTableClosed) || errors.Is(err, bolt.ErrStoreClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	// Argument normalization.
	var ic *model.ErrInvalidCoordinate
	if errors.As(err, &ic) {
		return &ErrInvalidCoordinate{
			Coord: model.GeoCoord{DecimicroLat: ic.DecimicroLat, DecimicroLon: ic.DecimicroLon},
			cause: err,
		}
	}
	var ef *tagcodec.ErrEncodingFailure
	if errors.As(err, &ef) {
		return &ErrTagEncoding{Key: ef.Key, Value: ef.Value, cause: err}
	}

	return err
}
