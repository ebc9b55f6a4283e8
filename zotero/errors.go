package zotero

import (
	"errors"
	"fmt"
)

// Errors returned by the client. HTTP failures wrap one of these in an
// *APIError carrying the status code, URL, method and response body.
var (
	// ErrMissingCredentials indicates the client was constructed without a
	// library ID or library type.
	ErrMissingCredentials = errors.New("zotero: both the library ID and the library type are required")

	// ErrParamNotPassed indicates a required path parameter or payload key
	// is missing.
	ErrParamNotPassed = errors.New("zotero: required parameter missing")

	// ErrCallDoesNotExist indicates the API call is invalid for this
	// library type (e.g. publications on a group library).
	ErrCallDoesNotExist = errors.New("zotero: API call does not exist for this library type")

	// ErrUnsupportedParams indicates unsupported parameters were passed (400).
	ErrUnsupportedParams = errors.New("zotero: unsupported parameters")

	// ErrNotAuthorised indicates the request was not allowed (401/403).
	ErrNotAuthorised = errors.New("zotero: not authorised to retrieve this resource")

	// ErrResourceNotFound indicates the item, collection or other resource
	// could not be found (404).
	ErrResourceNotFound = errors.New("zotero: resource not found")

	// ErrConflict indicates the target library is locked (409).
	ErrConflict = errors.New("zotero: conflict, target library is locked")

	// ErrPreconditionFailed indicates the write token or version
	// precondition was rejected (412).
	ErrPreconditionFailed = errors.New("zotero: precondition failed")

	// ErrEntityTooLarge indicates the upload would exceed the storage
	// quota of the library owner (413).
	ErrEntityTooLarge = errors.New("zotero: request entity too large")

	// ErrPreconditionRequired indicates If-Match or If-None-Match was not
	// provided (428).
	ErrPreconditionRequired = errors.New("zotero: precondition required")

	// ErrTooManyRetries indicates a 429 with no backoff or retry duration:
	// there is nothing to wait on, so the call is fatal.
	ErrTooManyRetries = errors.New("zotero: rate-limited with no backoff or retry duration from the server")

	// ErrHTTP is the kind for unmapped non-2xx responses.
	ErrHTTP = errors.New("zotero: HTTP error")

	// ErrInvalidItemFields indicates a payload contains fields that are not
	// part of the item schema.
	ErrInvalidItemFields = errors.New("zotero: invalid fields present in item")

	// ErrTooManyItems indicates a batch over the 50-record write cap.
	ErrTooManyItems = errors.New("zotero: too many items for a single call")

	// ErrFileDoesNotExist indicates a local attachment path could not be
	// opened.
	ErrFileDoesNotExist = errors.New("zotero: attachment file could not be opened or found")

	// ErrUpload indicates a transport-level failure while transferring
	// file bytes to the storage target, where no status code is available.
	ErrUpload = errors.New("zotero: connection dropped during upload")

	// ErrCouldNotReachURL indicates the endpoint was unreachable.
	ErrCouldNotReachURL = errors.New("zotero: could not reach URL")
)

// statusErrors maps HTTP status codes to error kinds. 429 is handled
// separately because it feeds the backoff tracker when a duration is known.
var statusErrors = map[int]error{
	400: ErrUnsupportedParams,
	401: ErrNotAuthorised,
	403: ErrNotAuthorised,
	404: ErrResourceNotFound,
	409: ErrConflict,
	412: ErrPreconditionFailed,
	413: ErrEntityTooLarge,
	428: ErrPreconditionRequired,
}

// APIError is an error response from the Zotero API. It wraps one of the
// sentinel error kinds and carries the full request context for diagnosis.
type APIError struct {
	Kind       error
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s\nCode: %d\nURL: %s\nMethod: %s\nResponse: %s",
		e.Kind, e.StatusCode, e.URL, e.Method, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound)
}

// IsNotAuthorised reports whether err indicates an authorisation problem.
func IsNotAuthorised(err error) bool {
	return errors.Is(err, ErrNotAuthorised)
}
