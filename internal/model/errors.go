package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrTemplateNotFound = errors.New("template not found")
	ErrUnauthorized     = errors.New("push authorization not granted")
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrInvalidRequest   = errors.New("invalid request")
)

// TransportError wraps an I/O failure in a store or delivery backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err as a TransportError, leaving nil and known sentinel
// errors untouched.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrAlreadyExists, ErrTemplateNotFound, ErrUnauthorized, ErrInvalidRecipient, ErrInvalidRequest} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &TransportError{Op: op, Err: err}
}
