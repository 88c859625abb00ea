package models

import "errors"

// Client input errors. Handlers answer these with 400.
var (
	ErrUnsupportedNetwork = errors.New("unsupported network")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrUnsupportedStyle   = errors.New("unsupported style")
)

// Image proxy errors.
var (
	// ErrUpstreamFetchFailed covers network failures and non-200 upstream responses.
	ErrUpstreamFetchFailed = errors.New("upstream fetch failed")
	// ErrUnsupportedImageFormat means the payload matched no known image signature.
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
)

// ErrInvalidLocator is returned when a content locator cannot be turned into a fetchable URL.
var ErrInvalidLocator = errors.New("invalid content locator")
