package vgeom

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by vgeom operations. Callers use errors.Is to
// test for them; the returned errors carry detail through %w wrapping.
var (
	// ErrNoConversion is returned when no conversion path exists between two
	// column types.
	ErrNoConversion = errors.New("vgeom: no conversion between column types")

	// ErrRowOutOfRange is returned when a row index exceeds the table size.
	ErrRowOutOfRange = errors.New("vgeom: row out of range")

	// ErrPrimitiveArity is returned when a primitive run is closed with the
	// wrong number of vertices.
	ErrPrimitiveArity = errors.New("vgeom: primitive vertex count does not match its kind")

	// ErrIncompatiblePrimitive is returned when a primitive cannot join a geom
	// because its kind or shade model differs from the ones already present.
	ErrIncompatiblePrimitive = errors.New("vgeom: primitive incompatible with geom")

	// ErrInvalidGeom is returned when a primitive references rows its vertex
	// data does not have.
	ErrInvalidGeom = errors.New("vgeom: primitive references rows beyond vertex data")
)

// violation reports a programmer error. Debug builds (tag vgeom_debug) panic;
// release builds log at Warn and let the caller ignore or clamp the request.
func violation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if debugChecks {
		panic("vgeom: " + msg)
	}
	Logger().Warn("vgeom: precondition violated", "detail", msg)
}
