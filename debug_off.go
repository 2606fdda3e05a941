//go:build !vgeom_debug

package vgeom

const debugChecks = false
