package domain

import "errors"

var (
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidGroupingMode = errors.New("invalid grouping mode")
	ErrInvalidField        = errors.New("invalid field")
	ErrInvalidFieldValue   = errors.New("invalid field value")
	ErrInvalidPosition     = errors.New("invalid position")
	ErrInvalidBulkAction   = errors.New("invalid bulk action")
	ErrUnknownEvent        = errors.New("unknown event")
)
