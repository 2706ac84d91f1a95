package englishquest

import "errors"

// Failure categories for the begin-quiz fetch. Callers distinguish them with
// errors.Is; anything not matching a sentinel is an unknown transport failure.
var (
	// ErrMissingCredential means the question source API key is absent.
	ErrMissingCredential = errors.New("question source credential is missing")

	// ErrCredentialBlocked means the question source rejected the credential.
	ErrCredentialBlocked = errors.New("question source rejected the credential")

	// ErrMalformedResponse means the source returned content that could not
	// be parsed into valid questions, or returned zero valid questions.
	ErrMalformedResponse = errors.New("question source returned a malformed response")
)

// IsRetryable reports whether a begin-quiz failure is worth retrying as-is.
// Credential problems need operator action first; parse and transport
// failures may succeed on the next attempt.
func IsRetryable(err error) bool {
	return !errors.Is(err, ErrMissingCredential) && !errors.Is(err, ErrCredentialBlocked)
}

// FetchErrorMessage maps a begin-quiz failure to user-facing guidance.
func FetchErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "No API key is configured for the question service. Set ENGLISHQUEST_OPENAI_API_KEY (or OPENAI_API_KEY) and try again."
	case errors.Is(err, ErrCredentialBlocked):
		return "The question service rejected the configured API key. It may be invalid or revoked; check the key before retrying."
	case errors.Is(err, ErrMalformedResponse):
		return "The question service returned an unusable response. Please try again."
	default:
		return "Could not reach the question service. Check your connection and try again."
	}
}
