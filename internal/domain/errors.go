package domain

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by a collector that has no sources yet.
var ErrNotInitialized = errors.New("collector is not initialized")

// AddressParseError reports an address that is not an IP literal.
type AddressParseError struct {
	Address string
	Err     error
}

func (e *AddressParseError) Error() string {
	return fmt.Sprintf("parse address %q: %v", e.Address, e.Err)
}

func (e *AddressParseError) Unwrap() error { return e.Err }

// ConnectionSourceError wraps a failure of the router link.
type ConnectionSourceError struct {
	Op  string
	Err error
}

func (e *ConnectionSourceError) Error() string {
	return fmt.Sprintf("connection source: %s: %v", e.Op, e.Err)
}

func (e *ConnectionSourceError) Unwrap() error { return e.Err }

// GeoSourceError wraps a provider-wide failure of the geo lookup.
// A single IP missing from the database is not a GeoSourceError.
type GeoSourceError struct {
	Op  string
	Err error
}

func (e *GeoSourceError) Error() string {
	return fmt.Sprintf("geo source: %s: %v", e.Op, e.Err)
}

func (e *GeoSourceError) Unwrap() error { return e.Err }

// ErrAlreadyInitialized is returned when a collector is initialized twice.
var ErrAlreadyInitialized = errors.New("collector is already initialized")
