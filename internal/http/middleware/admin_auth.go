package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lexpoint/leadforms/internal/http/respond"
)

type adminCtxKey struct{}

// AdminAuthOption tightens token validation beyond signature and expiry.
type AdminAuthOption func(*adminAuth)

type adminAuth struct {
	secret []byte
	parser []jwt.ParserOption
}

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) AdminAuthOption {
	return func(a *adminAuth) {
		if issuer != "" {
			a.parser = append(a.parser, jwt.WithIssuer(issuer))
		}
	}
}

// WithLeeway tolerates clock skew between the token issuer and this service.
func WithLeeway(d time.Duration) AdminAuthOption {
	return func(a *adminAuth) { a.parser = append(a.parser, jwt.WithLeeway(d)) }
}

// AdminJWT guards the form, lead and mapping admin routes with an HS256 bearer
// token. Tokens must carry an expiry; an empty secret rejects every request.
func AdminJWT(secret string, opts ...AdminAuthOption) func(http.Handler) http.Handler {
	a := &adminAuth{
		secret: []byte(secret),
		parser: []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		},
	}
	for _, opt := range opts {
		opt(a)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(a.secret) == 0 {
				respond.Error(w, http.StatusUnauthorized, "admin auth disabled", "")
				return
			}
			raw, ok := bearerToken(r)
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "missing bearer token", "")
				return
			}
			claims, err := a.parse(raw)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid token", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminCtxKey{}, claims)))
		})
	}
}

func (a *adminAuth) parse(raw string) (jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, a.parser...)
	return claims, err
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AdminClaimsFromContext returns the verified admin claims, if any.
func AdminClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(adminCtxKey{}).(jwt.RegisteredClaims)
	return claims, ok
}

// AdminSubject is the sub claim of the calling admin, or "" outside admin routes.
func AdminSubject(ctx context.Context) string {
	claims, _ := AdminClaimsFromContext(ctx)
	return claims.Subject
}
