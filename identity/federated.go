package identity

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const defaultKeyCacheTTL = 15 * time.Minute

var (
	errJWKSNotConfigured = errors.New("jwks not configured")
	errMissingEmail      = errors.New("missing email")
	errEmailNotVerified  = errors.New("email not verified")
)

// OIDCVerifier validates ID tokens issued by an external identity provider
// and returns the verified email address they carry.
type OIDCVerifier struct {
	Audience string
	Issuers  []string

	keyfunc     jwt.Keyfunc
	jwks        *keyfunc.JWKS
	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewGoogleVerifier fetches the provider key set from jwksURL and keeps it
// refreshed in the background. Both the bare and https issuer forms are
// accepted since the provider emits either.
func NewGoogleVerifier(jwksURL, issuer, clientID string) (*OIDCVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, err
	}
	v := NewOIDCVerifier(jwks.Keyfunc, clientID, issuer, "https://"+strings.TrimPrefix(issuer, "https://"))
	v.jwks = jwks
	return v, nil
}

// NewOIDCVerifier creates a verifier around an arbitrary key lookup.
func NewOIDCVerifier(kf jwt.Keyfunc, audience string, issuers ...string) *OIDCVerifier {
	return &OIDCVerifier{
		Audience:    audience,
		Issuers:     issuers,
		keyfunc:     kf,
		parser:      jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
		keyCacheTTL: defaultKeyCacheTTL,
	}
}

// Verify checks the assertion signature and claims and returns the lowercased
// email address.
func (v *OIDCVerifier) Verify(idToken string) (string, error) {
	token, err := v.parser.Parse(idToken, v.keyForToken)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if !claims.VerifyIssuedAt(now+60, false) {
		return "", errors.New("token used before issued")
	}
	if !claims.VerifyAudience(v.Audience, true) {
		return "", errors.New("invalid audience")
	}
	if !v.issuerAllowed(claims) {
		return "", errInvalidIssuer
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return "", errMissingEmail
	}
	if verified, present := claims["email_verified"]; present {
		if b, ok := verified.(bool); !ok || !b {
			return "", errEmailNotVerified
		}
	}
	return strings.ToLower(email), nil
}

// Close stops the background key refresh.
func (v *OIDCVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func (v *OIDCVerifier) issuerAllowed(claims jwt.MapClaims) bool {
	if len(v.Issuers) == 0 {
		return true
	}
	for _, iss := range v.Issuers {
		if claims.VerifyIssuer(iss, true) {
			return true
		}
	}
	return false
}

func (v *OIDCVerifier) keyForToken(token *jwt.Token) (any, error) {
	if v.keyfunc == nil {
		return nil, errJWKSNotConfigured
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && v.keyCacheTTL > 0 {
		if cached, ok := v.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			v.keyCache.Delete(kid)
		}
	}

	key, err := v.keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && v.keyCacheTTL > 0 {
		v.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(v.keyCacheTTL)})
	}
	return key, nil
}
