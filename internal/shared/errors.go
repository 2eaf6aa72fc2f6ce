package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Provider and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrAlbumNotFound      = fmt.Errorf("album not found")
	ErrNoStorefrontLink   = fmt.Errorf("no storefront link available")
	ErrNoStructuredData   = fmt.Errorf("no structured data block found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
