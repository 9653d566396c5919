// Package validation holds the error type services return for malformed input.
package validation

// Error marks a request that was rejected before touching any state.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

func New(msg string) error {
	return &Error{msg: msg}
}
