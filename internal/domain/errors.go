package domain

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrResolution  = errors.New("asset resolution failed")
	ErrRateLimited = errors.New("rate limited")
	ErrGeneration  = errors.New("generation failed")
	ErrAssembly    = errors.New("assembly failed")
)
