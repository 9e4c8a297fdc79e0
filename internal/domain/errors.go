package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("no active session, please log in")
	ErrNetwork         = errors.New("network error, please try again")
	ErrNotFound        = errors.New("item no longer exists")
	ErrInvalidQuantity = errors.New("quantity cannot be less than 1")
	ErrInvalidVariant  = errors.New("no such color/size variant")
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrIncompleteForm  = errors.New("checkout form is incomplete")
	ErrRemoteRejected  = errors.New("request rejected by backend")
)

// IncompleteFormError lists the required checkout fields that were left blank.
type IncompleteFormError struct {
	Fields []string
}

func (e *IncompleteFormError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncompleteForm, strings.Join(e.Fields, ", "))
}

func (e *IncompleteFormError) Is(target error) bool {
	return target == ErrIncompleteForm
}

// RemoteRejectedError carries the backend's reason verbatim.
type RemoteRejectedError struct {
	Status int
	Reason string
}

func (e *RemoteRejectedError) Error() string {
	return e.Reason
}

func (e *RemoteRejectedError) Is(target error) bool {
	return target == ErrRemoteRejected
}
