package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kasirkita/backend-kasir/internal/common"
)

// Authenticator verifies cashier bearer tokens and stamps the cashier
// identity on the request context. Tokens are HS256-signed with a
// shared secret; the subject is the cashier id.
type Authenticator struct {
	Secret []byte
	Issuer string
}

// IssueToken mints a token for a cashier, mainly for tooling and tests.
func (a Authenticator) IssueToken(cashierID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	builder := jwt.NewBuilder().
		Subject(cashierID).
		Claim("name", name).
		IssuedAt(now).
		Expiration(now.Add(ttl))
	if a.Issuer != "" {
		builder = builder.Issuer(a.Issuer)
	}
	token, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, a.Secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Middleware rejects requests without a valid bearer token.
func (a Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token tidak ditemukan", nil)
			return
		}
		opts := []jwt.ParseOption{
			jwt.WithKey(jwa.HS256, a.Secret),
			jwt.WithValidate(true),
		}
		if a.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(a.Issuer))
		}
		token, err := jwt.Parse([]byte(raw), opts...)
		if err != nil {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token tidak valid atau kedaluwarsa", nil)
			return
		}

		cashier := common.Cashier{ID: token.Subject()}
		if name, ok := token.Get("name"); ok {
			if s, ok := name.(string); ok {
				cashier.Name = s
			}
		}
		if cashier.ID == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "token tidak memuat identitas kasir", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithCashier(r.Context(), cashier)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
