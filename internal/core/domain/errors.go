package domain

import "errors"

var (
	ErrStaticExport       = errors.New("RUM API is not available in static export mode")
	ErrInvalidTimeRange   = errors.New("invalid time range")
	ErrUnknownMetric      = errors.New("unknown metric")
	ErrLeadNotFound       = errors.New("lead not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
