package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/streamspace/statehub/internal/errors"
)

// adminClaims is the JWT payload issued after a successful admin login. The
// admin surface has exactly one privilege level, so there is no role field
// to carry — unlike the multi-role claims this pattern is adapted from.
type adminClaims struct {
	jwt.RegisteredClaims
}

// AdminAuth verifies the admin bearer credential and issues short-lived JWTs
// for the admin REST and WebSocket surfaces. The credential itself is stored
// hashed (bcrypt) so the raw secret never sits in process memory or config
// longer than the single comparison that needs it.
type AdminAuth struct {
	credentialHash []byte
	jwtSecret      []byte
	tokenTTL       time.Duration
}

// NewAdminAuth hashes the configured admin bearer credential at startup.
// The credential is hashed as given; an empty credential is not rejected
// here, so the entrypoint skips constructing AdminAuth when none is set.
func NewAdminAuth(credential, jwtSecret string, tokenTTL time.Duration) (*AdminAuth, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AdminAuth{credentialHash: hash, jwtSecret: []byte(jwtSecret), tokenTTL: tokenTTL}, nil
}

// Login exchanges the raw admin credential for a signed JWT. Constant-time
// comparison is provided by bcrypt itself.
func (a *AdminAuth) Login(credential string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(a.credentialHash, []byte(credential)); err != nil {
		return "", apperrors.Unauthorized("invalid admin credential")
	}

	now := time.Now()
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "statehub-admin",
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

func (a *AdminAuth) validate(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.Unauthorized("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return apperrors.Unauthorized("invalid or expired admin token")
	}
	return nil
}

// Middleware requires a valid admin JWT, accepted either as a standard
// Authorization: Bearer header (REST calls) or a token query parameter
// (WebSocket upgrades, which cannot set custom headers from a browser).
func (a *AdminAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.Unauthorized("admin token required").ToResponse())
			return
		}
		if err := a.validate(tokenString); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, err.(*apperrors.AppError).ToResponse())
			return
		}
		c.Next()
	}
}
