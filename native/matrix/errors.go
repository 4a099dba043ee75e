package matrix

import "errors"

var (
	ErrNilState            = errors.New("matrix: state not configured")
	ErrNilToken            = errors.New("matrix: token ledger not configured")
	ErrNotInitialised      = errors.New("matrix: root not initialised")
	ErrAlreadyInitialised  = errors.New("matrix: root already initialised")
	ErrAlreadyRegistered   = errors.New("matrix: already registered")
	ErrSponsorNotFound     = errors.New("matrix: sponsor not registered")
	ErrUserNotFound        = errors.New("matrix: user not registered")
	ErrInvalidTier         = errors.New("matrix: invalid package tier")
	ErrNothingToWithdraw   = errors.New("matrix: nothing to withdraw")
	ErrUnauthorized        = errors.New("matrix: caller is not the owner")
	ErrPaused              = errors.New("matrix: system paused")
	ErrEmergencyLocked     = errors.New("matrix: emergency lock active")
	ErrDistributionNotDue  = errors.New("matrix: distribution interval not elapsed")
	ErrInvalidAmount       = errors.New("matrix: amount must be positive")
	ErrInsufficientReserve = errors.New("matrix: amount exceeds contract balance")
)
