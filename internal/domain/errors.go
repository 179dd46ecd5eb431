package domain

import "errors"

var (
	// ErrUpstreamUnavailable covers transport failures, timeouts and non-2xx
	// responses from the weather provider.
	ErrUpstreamUnavailable = errors.New("weather upstream unavailable")

	// ErrUpstreamMalformed means the provider answered with a body that is not
	// JSON or lacks one of the current/hourly/daily sections.
	ErrUpstreamMalformed = errors.New("weather upstream malformed")

	// ErrPersistence wraps repository read/write failures.
	ErrPersistence = errors.New("zone persistence failure")

	// ErrZoneNotFound is returned for an id outside the monitored collection.
	ErrZoneNotFound = errors.New("zone not found")
)
