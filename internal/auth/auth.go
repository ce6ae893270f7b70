package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID  uuid.UUID
	Email   string
	IsStaff bool
}

type ctxKey int

const identityKey ctxKey = iota

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom reports the caller identity, if the request carried a valid token.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

type claims struct {
	Email string `json:"email"`
	Staff bool   `json:"staff"`
	jwt.RegisteredClaims
}

// Verifier checks bearer tokens. Token issuance belongs to a separate
// identity service; Issue exists for tests and internal tooling.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: id.Email,
		Staff: id.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, nil
}

func (v *Verifier) verify(raw string) (Identity, error) {
	token, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok {
		return Identity{}, fmt.Errorf("auth: unexpected claims type")
	}

	userID, err := uuid.FromString(c.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: invalid subject %q: %w", c.Subject, err)
	}

	return Identity{UserID: userID, Email: c.Email, IsStaff: c.Staff}, nil
}

// Middleware resolves the caller identity from the Authorization header.
// Requests without a token pass through anonymous; a malformed or expired
// token is rejected outright rather than downgraded to anonymous.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			rejectJSON(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		id, err := v.verify(raw)
		if err != nil {
			log.Warn().Err(err).Msg("rejected bearer token")
			rejectJSON(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAuth rejects anonymous callers.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			rejectJSON(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff rejects callers without the staff role. The response does not
// reveal anything about the target resource.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			rejectJSON(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !id.IsStaff {
			rejectJSON(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rejectJSON(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"error":%q}`, message)
}
