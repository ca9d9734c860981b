package thingsboard

import "fmt"

// AuthError means the login call failed. The refresh cycle is abandoned
// without touching the cache and is retried on the next tick.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("thingsboard authentication: %s", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }
func (e *AuthError) Cause() error  { return e.Err }

// FetchError means the timeseries of one device could not be retrieved.
type FetchError struct {
	DeviceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch timeseries of device %s: %s", e.DeviceID, e.Err)
}
func (e *FetchError) Unwrap() error { return e.Err }
func (e *FetchError) Cause() error  { return e.Err }

// ParseError means the timeseries of one device was retrieved but is
// malformed or lacks one of the required keys.
type ParseError struct {
	DeviceID string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse timeseries of device %s: %s", e.DeviceID, e.Err)
}
func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Cause() error  { return e.Err }
