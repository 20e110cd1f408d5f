package model

import "fmt"

// AuthError indicates a failure to establish credentials: a malformed
// private key, a rejected assertion, or a failed installation token
// exchange. The dispatcher maps it to a 401 response; it always occurs
// before any side effect on the pull request.
type AuthError struct {
	Op  string // The step that failed, e.g. "parse private key".
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s", e.Op)
	}
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error {
	return e.Err
}
