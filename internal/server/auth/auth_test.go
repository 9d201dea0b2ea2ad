package auth

import (
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yndnr/statichost/internal/server/config"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, method jwt.SigningMethod, secret []byte, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func validClaims(now time.Time) bearerClaims {
	return bearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "issuer.test",
			Audience:  jwt.ClaimStrings{"statichost"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Roles: []string{"viewer"},
	}
}

func TestBearer_Authenticate(t *testing.T) {
	now := time.Now()
	b, err := NewBearer(BearerConfig{Secret: testSecret, Issuer: "issuer.test", Audience: "statichost"})
	if err != nil {
		t.Fatalf("NewBearer: %v", err)
	}

	for _, m := range []jwt.SigningMethod{jwt.SigningMethodHS256, jwt.SigningMethodHS384, jwt.SigningMethodHS512} {
		t.Run(m.Alg(), func(t *testing.T) {
			id, err := b.Authenticate(requestWithToken(signToken(t, m, testSecret, validClaims(now))))
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if id.Subject != "alice" || id.Method != MethodBearer {
				t.Errorf("identity = %+v", id)
			}
			if !id.HasAnyRole("viewer") {
				t.Error("expected viewer role")
			}
		})
	}
}

func TestBearer_Rejections(t *testing.T) {
	now := time.Now()
	b, err := NewBearer(BearerConfig{Secret: testSecret, Issuer: "issuer.test", Audience: "statichost"})
	if err != nil {
		t.Fatal(err)
	}

	expired := validClaims(now)
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
	noExp := validClaims(now)
	noExp.ExpiresAt = nil
	wrongIssuer := validClaims(now)
	wrongIssuer.Issuer = "other"
	wrongAudience := validClaims(now)
	wrongAudience.Audience = jwt.ClaimStrings{"other"}
	noSubject := validClaims(now)
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{"expired", signToken(t, jwt.SigningMethodHS256, testSecret, expired)},
		{"missing exp", signToken(t, jwt.SigningMethodHS256, testSecret, noExp)},
		{"wrong issuer", signToken(t, jwt.SigningMethodHS256, testSecret, wrongIssuer)},
		{"wrong audience", signToken(t, jwt.SigningMethodHS256, testSecret, wrongAudience)},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), validClaims(now))},
		{"no subject", signToken(t, jwt.SigningMethodHS256, testSecret, noSubject)},
		{"garbage", "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Authenticate(requestWithToken(tt.token))
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestBearer_NoneAlgorithmRejected(t *testing.T) {
	b, _ := NewBearer(BearerConfig{Secret: testSecret})
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims(time.Now())).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Authenticate(requestWithToken(token)); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestBearer_InjectedClock(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := issued.Add(2 * time.Hour)
	b, _ := NewBearer(BearerConfig{Secret: testSecret, Now: func() time.Time { return later }})

	token := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(issued))
	if _, err := b.Authenticate(requestWithToken(token)); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want expiry rejection", err)
	}
}

func TestBearer_NoCredentials(t *testing.T) {
	b, _ := NewBearer(BearerConfig{Secret: testSecret})

	tests := []struct {
		name   string
		header string
	}{
		{"absent", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if _, err := b.Authenticate(r); !errors.Is(err, ErrNoCredentials) {
				t.Errorf("err = %v, want ErrNoCredentials", err)
			}
		})
	}
}

func TestNewBearer_EmptySecret(t *testing.T) {
	if _, err := NewBearer(BearerConfig{}); err == nil {
		t.Error("expected error for empty secret")
	}
}

func requestWithClientCert(cn string, ous ...string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	leaf := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: cn, OrganizationalUnit: ous},
	}
	r.TLS = &tls.ConnectionState{VerifiedChains: [][]*x509.Certificate{{leaf}}}
	return r
}

func TestClientCert_Authenticate(t *testing.T) {
	id, err := ClientCert{}.Authenticate(requestWithClientCert("svc-a", "ops"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.Subject != "svc-a" || id.Method != MethodClientCert || !id.HasAnyRole("ops") {
		t.Errorf("identity = %+v", id)
	}

	id, _ = ClientCert{}.Authenticate(requestWithClientCert(""))
	if id.Subject != "42" {
		t.Errorf("Subject = %q, want serial fallback", id.Subject)
	}
}

func TestClientCert_NoCredentials(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := (ClientCert{}).Authenticate(plain); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("plain request: err = %v", err)
	}

	unverified := httptest.NewRequest(http.MethodGet, "/", nil)
	unverified.TLS = &tls.ConnectionState{}
	if _, err := (ClientCert{}).Authenticate(unverified); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("unverified TLS: err = %v", err)
	}
}

func TestChain(t *testing.T) {
	b, _ := NewBearer(BearerConfig{Secret: testSecret})
	chain := Chain{ClientCert{}, b}

	r := requestWithClientCert("svc-a")
	r.Header.Set("Authorization", "Bearer garbage")
	id, err := chain.Authenticate(r)
	if err != nil || id.Method != MethodClientCert {
		t.Errorf("client cert should win: id=%+v err=%v", id, err)
	}

	token := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(time.Now()))
	id, err = chain.Authenticate(requestWithToken(token))
	if err != nil || id.Method != MethodBearer {
		t.Errorf("bearer fallback: id=%+v err=%v", id, err)
	}

	if _, err := chain.Authenticate(requestWithToken("garbage")); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("invalid bearer: err = %v", err)
	}
	if _, err := chain.Authenticate(requestWithToken("")); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("anonymous: err = %v", err)
	}
	if _, err := (Chain{}).Authenticate(requestWithToken("")); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("empty chain: err = %v", err)
	}
}

func TestPolicy_Authorize(t *testing.T) {
	user := &Identity{Subject: "alice", Roles: []string{"viewer"}}
	admin := &Identity{Subject: "root", Roles: []string{"admin"}}

	tests := []struct {
		name string
		cfg  PolicyConfig
		path string
		id   *Identity
		want Decision
	}{
		{"anonymous on healthz", PolicyConfig{AnonymousPaths: []string{"/healthz"}}, "/healthz", nil, Allow},
		{"exact match only", PolicyConfig{AnonymousPaths: []string{"/healthz"}}, "/healthz/x", nil, Unauthenticated},
		{"anonymous denied", PolicyConfig{Fallback: config.PolicyRequireAuthenticated}, "/index.html", nil, Unauthenticated},
		{"authenticated allowed", PolicyConfig{Fallback: config.PolicyRequireAuthenticated}, "/index.html", user, Allow},
		{"allow all", PolicyConfig{Fallback: config.PolicyAllowAll}, "/index.html", nil, Allow},
		{"missing role", PolicyConfig{RequiredRoles: []string{"admin"}}, "/", user, Forbidden},
		{"has role", PolicyConfig{RequiredRoles: []string{"admin"}}, "/", admin, Allow},
		{"role check needs identity", PolicyConfig{RequiredRoles: []string{"admin"}}, "/", nil, Unauthenticated},
		{"anonymous path skips roles", PolicyConfig{AnonymousPaths: []string{"/readyz"}, RequiredRoles: []string{"admin"}}, "/readyz", nil, Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.cfg)
			if err != nil {
				t.Fatalf("NewPolicy: %v", err)
			}
			if got := p.Authorize(tt.path, tt.id); got != tt.want {
				t.Errorf("Authorize = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewPolicy_UnknownFallback(t *testing.T) {
	if _, err := NewPolicy(PolicyConfig{Fallback: "maybe"}); err == nil {
		t.Error("expected error")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default().Auth
	cfg.AnonymousPaths = config.DefaultAnonymousPaths

	if _, _, err := FromConfig(cfg); err == nil {
		t.Error("require_authenticated without authenticators should fail")
	}

	cfg.ClientCert.Enabled = true
	cfg.Bearer.HMACSecret = string(testSecret)
	chain, policy, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(chain))
	}
	if _, ok := chain[0].(ClientCert); !ok {
		t.Error("client certificate authenticator should come first")
	}
	if !policy.Exempt("/healthz") || !policy.Exempt("/readyz") || policy.Exempt("/version") {
		t.Error("unexpected exemptions")
	}

	open := config.Default().Auth
	open.FallbackPolicy = config.PolicyAllowAll
	chain, _, err = FromConfig(open)
	if err != nil || len(chain) != 0 {
		t.Errorf("allow_all: chain=%v err=%v", chain, err)
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if _, ok := IdentityFromContext(ctx); ok {
		t.Error("empty context should have no identity")
	}
	ctx = WithIdentity(ctx, &Identity{Subject: "alice"})
	id, ok := IdentityFromContext(ctx)
	if !ok || id.Subject != "alice" {
		t.Errorf("IdentityFromContext = %+v, %v", id, ok)
	}
}

func TestDecision_String(t *testing.T) {
	if Allow.String() != "allow" || Unauthenticated.String() != "unauthenticated" || Forbidden.String() != "forbidden" {
		t.Error("unexpected decision names")
	}
}
