package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
	"taskflow/feed"
)

// Identity is the account gateway used by the auth handlers and the guard.
type Identity interface {
	SignUp(ctx context.Context, email, password string) (domain.Session, error)
	SignIn(ctx context.Context, email, password string) (domain.Session, error)
	SignInFederated(ctx context.Context, provider, assertion string) (domain.Session, error)
	SignOut(ctx context.Context, s domain.Session) error
	Authenticate(ctx context.Context, token string) (domain.Session, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// Boards holds the task boards mounted by signed-in users.
type Boards interface {
	Mount(owner string) string
	Unmount(owner, id string) bool
	Do(owner, id string, fn func(b *domain.Board)) error
	Snapshot(owner, id string) (domain.Snapshot, error)
	Subscribe(owner, id string) (<-chan struct{}, func(), error)
	DropOwner(owner string) int
}

// Dependencies wires the handlers to their collaborators.
type Dependencies struct {
	Identity Identity
	Boards   Boards
	Feed     feed.Store
	Events   feed.EventPublisher
	Logger   *log.Logger

	// Health reports whether backing services are reachable. Optional.
	Health func(ctx context.Context) error

	SecureCookie  bool
	MaxUploadSize int64
	Now           func() time.Time
}
