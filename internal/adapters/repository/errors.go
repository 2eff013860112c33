package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrInvalidKey   = errors.New("invalid lock key")
)
