package domain

import "fmt"

// AuthErrorKind classifies identity failures for transport mapping.
type AuthErrorKind int

const (
	AuthInvalidCredentials AuthErrorKind = iota
	AuthEmailInUse
	AuthInvalidEmail
	AuthWeakPassword
	AuthInvalidToken
	AuthUnsupportedProvider
	AuthUnavailable
)

// AuthError is returned by the identity gateway. Message is shown to the user
// verbatim.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError without an underlying cause.
func NewAuthError(kind AuthErrorKind, msg string) *AuthError {
	return &AuthError{Kind: kind, Message: msg}
}

// StoreError wraps a failure of the object or document store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
