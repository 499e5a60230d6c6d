package domain

import (
	"errors"
	"time"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// User is an account record held by the identity gateway.
type User struct {
	Email        string
	PasswordHash string
	Provider     string
	CreatedAt    time.Time
}
