// Package errors defines error types for the toolmesh SDK.
//
// This package provides structured error types covering the failure taxonomy
// of the protocol engine: remote call failures, channel-level failures,
// protocol violations, and local lifecycle errors. All error types support
// error unwrapping and can be checked using errors.Is and errors.As.
package errors
