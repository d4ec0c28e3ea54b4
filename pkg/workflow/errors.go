package workflow

import "errors"

var (
	// ErrInvalidSyntax indicates the workflow text does not parse.
	ErrInvalidSyntax = errors.New("invalid workflow syntax")

	// ErrPlanNotFound indicates the plan id is not in the store.
	ErrPlanNotFound = errors.New("plan not found")
)
