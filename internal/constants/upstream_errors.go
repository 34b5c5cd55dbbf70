package constants

// Upstream API Error Codes
// These constants define specific error scenarios for the upstream activity API

// Credential-related errors
const (
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeTokenExpired         = "TOKEN_EXPIRED"
	ErrCodeRefreshFailed        = "REFRESH_FAILED"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
)

// Transport errors
const (
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeNetworkError     = "NETWORK_ERROR"
	ErrCodeUpstreamError    = "UPSTREAM_ERROR"
	ErrCodeResourceNotFound = "RESOURCE_NOT_FOUND"
)

// Data validation errors
const (
	ErrCodeInvalidDataFormat = "INVALID_DATA_FORMAT"
	ErrCodeMalformedPayload  = "MALFORMED_PAYLOAD"
)

// Error Messages
// Human-readable messages corresponding to error codes

var UpstreamErrorMessages = map[string]string{
	ErrCodeInvalidToken:         "The upstream access token is invalid or has been revoked",
	ErrCodeTokenExpired:         "The upstream access token has expired",
	ErrCodeRefreshFailed:        "Exchanging the refresh token for a new token pair failed",
	ErrCodeAuthenticationFailed: "Authentication with the upstream API failed",

	ErrCodeRateLimited:      "Upstream rate limit exceeded. Please try again later",
	ErrCodeNetworkError:     "Unable to reach the upstream API",
	ErrCodeUpstreamError:    "The upstream API returned a server error",
	ErrCodeResourceNotFound: "The requested upstream resource was not found",

	ErrCodeInvalidDataFormat: "The data format is invalid",
	ErrCodeMalformedPayload:  "The upstream payload could not be parsed",
}

// GetErrorMessage returns the human-readable message for an error code
func GetErrorMessage(code string) string {
	if msg, exists := UpstreamErrorMessages[code]; exists {
		return msg
	}
	return "An unknown error occurred"
}
