package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
)

// AppClaims is the token contract for this service: subject id plus the
// user's email and global role. Expiry is enforced by the jwt parser.
type AppClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ExtractToken pulls the bearer token from the Authorization header, falling
// back to the 'token' query parameter for websocket clients that cannot set
// headers during the upgrade.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return r.URL.Query().Get("token")
}

// ParseClaims validates the token signature and expiry and returns the
// claims. HMAC is the only accepted signing method.
func ParseClaims(tokenString, jwtSecret string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AppClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// ActorFromClaims builds the request identity. Any role other than admin is
// treated as a plain user.
func ActorFromClaims(claims *AppClaims) domain.Actor {
	role := domain.GlobalRoleUser
	if claims.Role == string(domain.GlobalRoleAdmin) {
		role = domain.GlobalRoleAdmin
	}
	return domain.Actor{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  role,
	}
}

// NewAuthMiddleware authenticates the request exactly once, before any room
// operation is reachable. Missing, invalid, or expired tokens are rejected
// here and the connection never upgrades.
func NewAuthMiddleware(logger *slog.Logger, jwtSecret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := ExtractToken(r)
			if tokenString == "" {
				logger.Warn("Bearer token missing in request", "ip", reqMeta.IP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := ParseClaims(tokenString, jwtSecret)
			if err != nil {
				logger.Warn("Invalid token presented", slog.String("ip", reqMeta.IP), slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				logger.Warn("Valid token missing 'sub' claim", "ip", reqMeta.IP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.Actor = ActorFromClaims(claims)
			next.ServeHTTP(w, r)
		})
	}
}
