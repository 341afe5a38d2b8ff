package optimization

import "fmt"

// Error is a configuration or setup error with component context. It is
// raised at construction time, before any iteration begins. Runtime
// numerical failure never takes this form: it is reported as a terminal
// Status so the caller keeps the best known point.
type Error struct {
	// Component is the component that rejected its input.
	Component string
	// Op is the operation that caused the error, if any.
	Op string
	// Message describes what was wrong.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	prefix := e.Component
	if e.Op != "" {
		if prefix != "" {
			prefix += ": "
		}
		prefix += e.Op
	}
	msg := e.Message
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOp adds operation context to the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// NewError creates a configuration error for the given component.
func NewError(component, message string) *Error {
	return &Error{Component: component, Message: message}
}

// NewErrorf creates a configuration error with a formatted message.
func NewErrorf(component, format string, args ...interface{}) *Error {
	return &Error{Component: component, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an existing error with component context. If err is
// nil, WrapError returns nil.
func WrapError(err error, component, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Component: component, Message: message, Err: err}
}

// IsConfigError checks if an error is of type Error. If so it returns
// the typed error and true, otherwise nil and false.
func IsConfigError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if e, ok := err.(*Error); ok {
		return e, true
	}
	return nil, false
}
