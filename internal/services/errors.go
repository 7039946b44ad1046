package services

import "errors"

// Dashboard service errors
var (
	ErrDatasetNotLoaded  = errors.New("dataset not loaded")
	ErrDivisionNotFound  = errors.New("division not found")
	ErrProvinceNotFound  = errors.New("province not found")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrUnknownView       = errors.New("unknown view")
)
