//go:build vgeom_debug

package vgeom

// debugChecks turns precondition violations into panics.
const debugChecks = true
