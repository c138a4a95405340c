package models

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrUpstreamUnavailable    = errors.New("upstream unavailable")
	ErrMalformedModelResponse = errors.New("malformed model response")
	ErrConsentRequired        = errors.New("consent required")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrNotFound               = errors.New("not found")
	ErrInvalidInput           = errors.New("invalid input")

	// ErrHabitNotFound matches ErrNotFound under errors.Is
	ErrHabitNotFound = fmt.Errorf("habit %w", ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
)
