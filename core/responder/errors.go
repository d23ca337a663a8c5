package responder

import "errors"

// Failure classes for responder calls. The controller maps all of them to the
// same apologetic recovery path; the class only changes what the user is told.
var (
	ErrTimeout     = errors.New("responder request timed out")
	ErrUnreachable = errors.New("responder unreachable")
	ErrServerError = errors.New("responder returned a server error")
	ErrBadResponse = errors.New("responder returned a malformed response")
)

// KindOf names the failure class of a responder error for surfacing to a
// presentation layer. Unknown errors are reported as unreachable.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	case errors.Is(err, ErrServerError):
		return "ServerError"
	case errors.Is(err, ErrBadResponse):
		return "BadResponse"
	default:
		return "Unreachable"
	}
}
