package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Remote service errors
	ErrRemote             = fmt.Errorf("remote request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Sync errors
	ErrCancelled      = fmt.Errorf("sync cancelled")
	ErrSyncInProgress = fmt.Errorf("sync already in progress")

	// Lookup errors
	ErrUserNotFound   = fmt.Errorf("user not found")
	ErrArtistNotFound = fmt.Errorf("artist not found")
	ErrTrackNotFound  = fmt.Errorf("track not found")
	ErrRunNotFound    = fmt.Errorf("sync run not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
