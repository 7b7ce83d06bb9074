package domain

import "errors"

// Client-side failure taxonomy
var (
	// ErrExtractionEmpty is returned when no product identity could be found on a page
	ErrExtractionEmpty = errors.New("no product identity found on page")

	// ErrTransport is returned for network, CORS or 5xx failures talking to the backend
	ErrTransport = errors.New("backend transport failure")

	// ErrTimeout is returned when a submission times out or the polling budget is exhausted
	ErrTimeout = errors.New("request timed out")

	// ErrNotFound is returned when the backend has no data and created no task
	ErrNotFound = errors.New("no sustainability data found")

	// ErrInvalidResponse is returned when the backend payload is malformed
	ErrInvalidResponse = errors.New("invalid response from backend")

	// ErrAnalysisFailed is returned when an analysis task ends in the error state
	ErrAnalysisFailed = errors.New("sustainability analysis failed")

	// ErrStaleResult is returned when a result arrives after its tab moved to another page
	ErrStaleResult = errors.New("result discarded: page changed")

	// ErrInvalidWeights is returned when a weight falls outside [MinWeight, MaxWeight]
	ErrInvalidWeights = errors.New("invalid weights")
)

// Server-side errors
var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrTaskNotFound is returned when an analysis task id is unknown
	ErrTaskNotFound = errors.New("analysis task not found")

	// ErrBrandNotFound is returned when a brand has no ESG record
	ErrBrandNotFound = errors.New("brand not found")

	// ErrProductNotFound is returned when no analysis is stored for a listing
	ErrProductNotFound = errors.New("product not found")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrAnalyzerFailure is returned when the analysis service call fails
	ErrAnalyzerFailure = errors.New("analysis service request failed")

	// ErrStoreUnavailable is returned when the product store cannot be reached
	ErrStoreUnavailable = errors.New("product store unavailable")
)

// UserMessage converts an error into the human-readable text shown to the user.
// Each client failure kind maps to a distinct message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExtractionEmpty):
		return "Nothing to analyze on this page."
	case errors.Is(err, ErrTimeout):
		return "The request timed out. Please try again later."
	case errors.Is(err, ErrNotFound):
		return "No sustainability data is available for this product yet."
	case errors.Is(err, ErrInvalidResponse):
		return "The sustainability service returned an unexpected response."
	case errors.Is(err, ErrAnalysisFailed):
		return "The sustainability analysis could not be completed."
	case errors.Is(err, ErrTransport):
		return "Could not reach the sustainability service. Check your connection or backend URL."
	case errors.Is(err, ErrStaleResult):
		return "The page changed before the result arrived."
	}
	return "Something went wrong while checking sustainability."
}
