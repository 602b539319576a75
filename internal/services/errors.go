package services

import "errors"

// Session service errors
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoTable           = errors.New("no uploaded table in session")
	ErrNoRecords         = errors.New("no normalized records in session")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrUnknownField      = errors.New("unknown canonical field")
	ErrUnknownHeader     = errors.New("unknown header")
	ErrInvalidPeriod     = errors.New("invalid trend period")
)
