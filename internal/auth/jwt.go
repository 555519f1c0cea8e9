package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const doctorIDKey contextKey = "doctorID"

// ErrInvalidToken is returned for tokens that fail verification or carry no
// doctor identity
var ErrInvalidToken = errors.New("invalid token")

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey string
	// AllowDevHeader accepts X-Doctor-ID without a token
	AllowDevHeader bool
}

// NewJWTConfig creates a new JWT config
func NewJWTConfig(secretKey string, allowDevHeader bool) *JWTConfig {
	if secretKey == "" {
		secretKey = "default-secret-key-change-in-production" // Default for development
	}
	return &JWTConfig{SecretKey: secretKey, AllowDevHeader: allowDevHeader}
}

// Parse verifies a token and returns the doctor it identifies. The doctor_id
// claim wins over sub.
func (c *JWTConfig) Parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(c.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	doctorID, _ := claims["doctor_id"].(string)
	if doctorID == "" {
		doctorID, _ = claims["sub"].(string)
	}
	if doctorID == "" {
		return "", ErrInvalidToken
	}
	return doctorID, nil
}

// Sign issues an HS256 token for a doctor
func (c *JWTConfig) Sign(doctorID string, claims jwt.MapClaims) (string, error) {
	all := jwt.MapClaims{"sub": doctorID, "doctor_id": doctorID}
	for k, v := range claims {
		all[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, all).SignedString([]byte(c.SecretKey))
}

// Authenticate resolves the doctor behind a request. An empty id with a nil
// error means the request is anonymous.
func (c *JWTConfig) Authenticate(r *http.Request) (string, error) {
	if c.AllowDevHeader {
		if doctorID := r.Header.Get("X-Doctor-ID"); doctorID != "" {
			return doctorID, nil
		}
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		// browsers cannot set headers on a websocket upgrade
		if token := r.URL.Query().Get("token"); token != "" {
			return c.Parse(token)
		}
		return "", nil
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidToken
	}
	return c.Parse(parts[1])
}

// Middleware creates a JWT authentication middleware. Anonymous requests pass
// through; handlers that need a doctor use RequireDoctor.
func (c *JWTConfig) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := c.Authenticate(r)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if doctorID != "" {
			r = r.WithContext(WithDoctorID(r.Context(), doctorID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireDoctor rejects requests without an authenticated doctor
func RequireDoctor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetDoctorID(r.Context()) == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithDoctorID stores the authenticated doctor in ctx
func WithDoctorID(ctx context.Context, doctorID string) context.Context {
	return context.WithValue(ctx, doctorIDKey, doctorID)
}

// GetDoctorID extracts doctor ID from context
func GetDoctorID(ctx context.Context) string {
	if doctorID, ok := ctx.Value(doctorIDKey).(string); ok {
		return doctorID
	}
	return ""
}
