package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pathwise-app/conversation-service/pkg/gateway/apierror"
)

// Identity is a verified end-user identity extracted from a bearer token.
type Identity struct {
	UserID string
	Email  string
}

func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// SupabaseVerifier validates Supabase-issued HS256 access tokens against
// the project's shared JWT secret.
type SupabaseVerifier struct {
	secret   []byte
	audience string
}

func NewSupabaseVerifier(secret, audience string) *SupabaseVerifier {
	return &SupabaseVerifier{secret: []byte(secret), audience: audience}
}

func (v *SupabaseVerifier) Verify(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, apierror.E(apierror.KindUnauthenticated, "missing identity token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &supabaseClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return Identity{}, apierror.E(apierror.KindUnauthenticated, "invalid identity token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, apierror.E(apierror.KindUnauthenticated, "invalid identity token")
	}

	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}
