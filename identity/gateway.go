package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

const minPasswordLength = 6

const (
	msgInvalidCredentials = "invalid email or password"
	msgEmailInUse         = "email already in use"
	msgInvalidEmail       = "invalid email address"
	msgWeakPassword       = "Password should be at least 6 characters"
	msgInvalidResetToken  = "password reset link is invalid or has expired"
	msgInvalidFederated   = "federated sign-in failed"
	msgUnsupported        = "unsupported sign-in provider"
	msgUnavailable        = "authentication service unavailable"
)

// UserStore persists accounts.
type UserStore interface {
	GetUser(ctx context.Context, email string) (domain.User, error)
	InsertUser(ctx context.Context, u domain.User) error
	UpdatePassword(ctx context.Context, email, hash string) error
}

// Revoker tracks revoked token ids.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// FederatedVerifier checks an assertion from an external identity provider.
type FederatedVerifier interface {
	Verify(assertion string) (string, error)
}

// EventPublisher hands events to the outbound queue.
type EventPublisher interface {
	Publish(ev domain.Event) bool
}

// Gateway implements sign-up, sign-in, sign-out and password reset on top of
// the account store.
type Gateway struct {
	users     UserStore
	tokens    *Tokens
	revoker   Revoker
	providers map[string]FederatedVerifier
	events    EventPublisher
	params    *argon2id.Params
	logger    *log.Logger
	now       func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithProvider enables federated sign-in for the named provider.
func WithProvider(name string, v FederatedVerifier) Option {
	return func(g *Gateway) { g.providers[strings.ToLower(name)] = v }
}

// WithEvents publishes account events through p.
func WithEvents(p EventPublisher) Option {
	return func(g *Gateway) { g.events = p }
}

// WithHashParams overrides the argon2id cost parameters.
func WithHashParams(p *argon2id.Params) Option {
	return func(g *Gateway) { g.params = p }
}

// NewGateway creates a Gateway.
func NewGateway(users UserStore, tokens *Tokens, revoker Revoker, logger *log.Logger, opts ...Option) *Gateway {
	if users == nil || tokens == nil || revoker == nil {
		panic("identity.NewGateway: missing dependency")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	g := &Gateway{
		users:     users,
		tokens:    tokens,
		revoker:   revoker,
		providers: map[string]FederatedVerifier{},
		params:    argon2id.DefaultParams,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SignUp creates a password account and signs it in.
func (g *Gateway) SignUp(ctx context.Context, email, password string) (domain.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.Session{}, err
	}
	if err := checkPassword(password); err != nil {
		return domain.Session{}, err
	}
	hash, err := argon2id.CreateHash(password, g.params)
	if err != nil {
		return domain.Session{}, g.unavailable("hash password", err)
	}

	u := domain.User{Email: email, PasswordHash: hash, Provider: domain.ProviderPassword, CreatedAt: g.now().UTC()}
	if err := g.users.InsertUser(ctx, u); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.Session{}, domain.NewAuthError(domain.AuthEmailInUse, msgEmailInUse)
		}
		return domain.Session{}, g.unavailable("insert user", err)
	}

	g.publish(domain.EventUserRegistered, email, map[string]string{"email": email, "provider": domain.ProviderPassword})
	return g.issue(email)
}

// SignIn checks email and password against the stored account.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.Session{}, err
	}
	u, err := g.users.GetUser(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Session{}, domain.NewAuthError(domain.AuthInvalidCredentials, msgInvalidCredentials)
		}
		return domain.Session{}, g.unavailable("get user", err)
	}
	if u.PasswordHash == "" {
		return domain.Session{}, domain.NewAuthError(domain.AuthInvalidCredentials, msgInvalidCredentials)
	}
	match, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil {
		g.logger.WithError(err).WithField("email", email).Warn("stored password hash is unreadable")
		return domain.Session{}, domain.NewAuthError(domain.AuthInvalidCredentials, msgInvalidCredentials)
	}
	if !match {
		return domain.Session{}, domain.NewAuthError(domain.AuthInvalidCredentials, msgInvalidCredentials)
	}
	return g.issue(email)
}

// SignInFederated verifies a provider assertion and signs in the account for
// its email, creating it on first use.
func (g *Gateway) SignInFederated(ctx context.Context, provider, assertion string) (domain.Session, error) {
	provider = strings.ToLower(provider)
	v, ok := g.providers[provider]
	if !ok {
		return domain.Session{}, domain.NewAuthError(domain.AuthUnsupportedProvider, msgUnsupported)
	}
	verified, err := v.Verify(assertion)
	if err != nil {
		g.logger.WithError(err).WithField("provider", provider).Debug("federated assertion rejected")
		return domain.Session{}, &domain.AuthError{Kind: domain.AuthInvalidToken, Message: msgInvalidFederated, Err: err}
	}
	email, err := normalizeEmail(verified)
	if err != nil {
		return domain.Session{}, err
	}

	_, err = g.users.GetUser(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUserNotFound):
		u := domain.User{Email: email, Provider: provider, CreatedAt: g.now().UTC()}
		if err := g.users.InsertUser(ctx, u); err != nil && !errors.Is(err, domain.ErrUserExists) {
			return domain.Session{}, g.unavailable("insert user", err)
		}
		g.publish(domain.EventUserRegistered, email, map[string]string{"email": email, "provider": provider})
	default:
		return domain.Session{}, g.unavailable("get user", err)
	}
	return g.issue(email)
}

// SignOut revokes the session until it would have expired.
func (g *Gateway) SignOut(ctx context.Context, s domain.Session) error {
	if _, err := g.revoker.Revoke(ctx, s.ID, s.ExpiresAt); err != nil {
		return g.unavailable("revoke session", err)
	}
	return nil
}

// Authenticate resolves a presented token into a live session.
func (g *Gateway) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	s, err := g.tokens.Parse(token)
	if err != nil {
		return domain.Session{}, &domain.AuthError{Kind: domain.AuthInvalidToken, Message: "invalid session", Err: err}
	}
	if !s.Valid(g.now()) {
		return domain.Session{}, domain.NewAuthError(domain.AuthInvalidToken, "session expired")
	}
	revoked, err := g.revoker.IsRevoked(ctx, s.ID)
	if err != nil {
		return domain.Session{}, g.unavailable("check revocation", err)
	}
	if revoked {
		return domain.Session{}, domain.NewAuthError(domain.AuthInvalidToken, "session revoked")
	}
	return s, nil
}

// RequestPasswordReset publishes a reset token for password accounts. Unknown
// or federated accounts are ignored so callers cannot probe for accounts.
func (g *Gateway) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil
	}
	u, err := g.users.GetUser(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return g.unavailable("get user", err)
	}
	if u.Provider != domain.ProviderPassword {
		return nil
	}
	token, err := g.tokens.IssueReset(email)
	if err != nil {
		return g.unavailable("issue reset token", err)
	}
	g.publish(domain.EventPasswordResetRequested, email, map[string]string{"email": email, "token": token})
	return nil
}

// ConfirmPasswordReset replaces the password of the account named by token.
// A token can be used once.
func (g *Gateway) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	email, id, exp, err := g.tokens.ParseReset(token)
	if err != nil {
		return &domain.AuthError{Kind: domain.AuthInvalidToken, Message: msgInvalidResetToken, Err: err}
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	claimed, err := g.revoker.Revoke(ctx, id, exp)
	if err != nil {
		return g.unavailable("claim reset token", err)
	}
	if !claimed {
		return domain.NewAuthError(domain.AuthInvalidToken, msgInvalidResetToken)
	}

	hash, err := argon2id.CreateHash(newPassword, g.params)
	if err != nil {
		return g.unavailable("hash password", err)
	}
	if err := g.users.UpdatePassword(ctx, email, hash); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.NewAuthError(domain.AuthInvalidToken, msgInvalidResetToken)
		}
		return g.unavailable("update password", err)
	}
	return nil
}

func (g *Gateway) issue(email string) (domain.Session, error) {
	s, err := g.tokens.Issue(email)
	if err != nil {
		return domain.Session{}, g.unavailable("issue session", err)
	}
	return s, nil
}

func (g *Gateway) publish(typ, userKey string, data any) {
	if g.events == nil {
		g.logger.WithField("type", typ).Warn("no event publisher configured, dropping event")
		return
	}
	ev, err := domain.NewEvent(typ, userKey, data)
	if err != nil {
		g.logger.WithError(err).WithField("type", typ).Error("failed to encode event")
		return
	}
	g.events.Publish(ev)
}

func (g *Gateway) unavailable(op string, err error) error {
	g.logger.WithError(err).WithField("op", op).Error("identity operation failed")
	return &domain.AuthError{Kind: domain.AuthUnavailable, Message: msgUnavailable, Err: err}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", &domain.AuthError{Kind: domain.AuthInvalidEmail, Message: msgInvalidEmail, Err: err}
	}
	return strings.ToLower(addr.Address), nil
}

func checkPassword(p string) error {
	if len([]rune(p)) < minPasswordLength {
		return domain.NewAuthError(domain.AuthWeakPassword, msgWeakPassword)
	}
	return nil
}
