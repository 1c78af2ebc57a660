package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrSessionExpired   = fmt.Errorf("session expired")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Pipeline errors
	ErrSourceRead      = fmt.Errorf("source read failed")
	ErrRecordNotFound  = fmt.Errorf("record not found")
	ErrMissingKey      = fmt.Errorf("record missing key field")
	ErrEnrichmentMiss  = fmt.Errorf("enrichment lookup failed")
	ErrMissingProvider = fmt.Errorf("provider record not found")
	ErrSyncWrite       = fmt.Errorf("destination write failed")
	ErrSnapshot        = fmt.Errorf("snapshot failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
