package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"taskflow/domain"
)

const (
	purposeSession = "session"
	purposeReset   = "reset"
)

var (
	errInvalidSigningMethod = errors.New("invalid signing method")
	errWrongPurpose         = errors.New("token purpose mismatch")
	errMissingSubject       = errors.New("missing sub")
	errInvalidIssuer        = errors.New("invalid issuer")
)

type tokenClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 session and password-reset tokens.
type Tokens struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	resetTTL time.Duration
	parser   *jwt.Parser
	now      func() time.Time
}

// NewTokens creates a token service. Secret must not be empty.
func NewTokens(secret []byte, issuer string, ttl, resetTTL time.Duration) *Tokens {
	if len(secret) == 0 {
		panic("identity.NewTokens: empty secret")
	}
	return &Tokens{
		secret:   secret,
		issuer:   issuer,
		ttl:      ttl,
		resetTTL: resetTTL,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
		now:      time.Now,
	}
}

// Issue signs a new session token for userKey.
func (t *Tokens) Issue(userKey string) (domain.Session, error) {
	id, signed, exp, err := t.sign(userKey, purposeSession, t.ttl)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{ID: id, Token: signed, UserKey: userKey, ExpiresAt: exp}, nil
}

// Parse validates a session token and returns the session it carries.
func (t *Tokens) Parse(token string) (domain.Session, error) {
	claims, err := t.parse(token, purposeSession)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		ID:        claims.ID,
		Token:     token,
		UserKey:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueReset signs a single-purpose password reset token for email.
func (t *Tokens) IssueReset(email string) (string, error) {
	_, signed, _, err := t.sign(email, purposeReset, t.resetTTL)
	return signed, err
}

// ParseReset validates a reset token and returns the email, token id and expiry.
func (t *Tokens) ParseReset(token string) (string, string, time.Time, error) {
	claims, err := t.parse(token, purposeReset)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return claims.Subject, claims.ID, claims.ExpiresAt.Time, nil
}

func (t *Tokens) sign(subject, purpose string, ttl time.Duration) (string, string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttl).Truncate(time.Second)
	id := uuid.NewString()
	claims := tokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return id, signed, exp, nil
}

func (t *Tokens) parse(token, purpose string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := t.parser.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidSigningMethod
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, errWrongPurpose
	}
	if t.issuer != "" && !claims.VerifyIssuer(t.issuer, true) {
		return nil, errInvalidIssuer
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, errMissingSubject
	}
	return claims, nil
}
