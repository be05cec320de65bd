package client

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrTransport indicates the gateway could not be reached or returned an unusable response
	ErrTransport = errors.New("gateway unreachable")
	// ErrQuery indicates the gateway answered with GraphQL errors
	ErrQuery = errors.New("query failed")
)

// TransportError wraps a failure to exchange a request with the gateway
type TransportError struct {
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway unreachable: %v", e.Err)
}

// Unwrap returns the underlying cause
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes every TransportError match ErrTransport
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// QueryError carries the first GraphQL error returned by the gateway
type QueryError struct {
	Message string
}

// Error implements the error interface
func (e *QueryError) Error() string {
	return e.Message
}

// Is makes every QueryError match ErrQuery
func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}
