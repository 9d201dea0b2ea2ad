package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCredentials means the request carries no credentials for an
	// authenticator. The chain moves on to the next one.
	ErrNoCredentials = errors.New("auth: no credentials")

	// ErrInvalidCredentials means credentials were present but rejected.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Authenticator extracts an identity from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// Chain tries authenticators in order. The first one that finds
// credentials decides the outcome.
type Chain []Authenticator

// Authenticate implements Authenticator.
func (c Chain) Authenticate(r *http.Request) (*Identity, error) {
	for _, a := range c {
		id, err := a.Authenticate(r)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		return id, err
	}
	return nil, ErrNoCredentials
}

// ClientCert authenticates verified TLS client certificates. The subject
// common name becomes the identity subject and organizational units become
// roles.
type ClientCert struct{}

// Authenticate implements Authenticator.
func (ClientCert) Authenticate(r *http.Request) (*Identity, error) {
	if r.TLS == nil || len(r.TLS.VerifiedChains) == 0 || len(r.TLS.VerifiedChains[0]) == 0 {
		return nil, ErrNoCredentials
	}
	leaf := r.TLS.VerifiedChains[0][0]
	subject := leaf.Subject.CommonName
	if subject == "" {
		subject = leaf.SerialNumber.String()
	}
	return &Identity{
		Subject: subject,
		Method:  MethodClientCert,
		Roles:   append([]string(nil), leaf.Subject.OrganizationalUnit...),
	}, nil
}

// BearerConfig configures a Bearer authenticator.
type BearerConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Bearer validates HS256/HS384/HS512 JWTs. Tokens must carry exp.
type Bearer struct {
	secret []byte
	parser *jwt.Parser
}

type bearerClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// NewBearer creates a Bearer authenticator.
func NewBearer(cfg BearerConfig) (*Bearer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: bearer secret is empty")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Now))
	}
	return &Bearer{
		secret: append([]byte(nil), cfg.Secret...),
		parser: jwt.NewParser(opts...),
	}, nil
}

// Authenticate implements Authenticator.
func (b *Bearer) Authenticate(r *http.Request) (*Identity, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, ErrNoCredentials
	}

	var claims bearerClaims
	_, err := b.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return b.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidCredentials)
	}
	return &Identity{
		Subject: claims.Subject,
		Method:  MethodBearer,
		Roles:   claims.Roles,
	}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
