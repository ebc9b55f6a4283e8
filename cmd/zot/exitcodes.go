package main

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing library id or API key)
	ExitNotFound    = 3 // Resource not found
	ExitAuthError   = 4 // Missing or invalid API key
	ExitAPIError    = 5 // API error (rate limit, precondition, server failure)
)
