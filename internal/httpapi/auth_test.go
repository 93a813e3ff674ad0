package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAdminAuth_LoginAndValidate(t *testing.T) {
	auth, err := NewAdminAuth("s3cret", "jwt-signing-key", time.Minute)
	require.NoError(t, err)

	_, err = auth.Login("wrong")
	assert.Error(t, err)

	token, err := auth.Login("s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NoError(t, auth.validate(token))
}

func TestAdminAuth_Middleware_RejectsMissingToken(t *testing.T) {
	auth, err := NewAdminAuth("s3cret", "jwt-signing-key", time.Minute)
	require.NoError(t, err)

	r := gin.New()
	r.Use(auth.Middleware())
	r.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_Middleware_AcceptsBearerHeader(t *testing.T) {
	auth, err := NewAdminAuth("s3cret", "jwt-signing-key", time.Minute)
	require.NoError(t, err)
	token, err := auth.Login("s3cret")
	require.NoError(t, err)

	r := gin.New()
	r.Use(auth.Middleware())
	r.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuth_Middleware_AcceptsQueryToken(t *testing.T) {
	auth, err := NewAdminAuth("s3cret", "jwt-signing-key", time.Minute)
	require.NoError(t, err)
	token, err := auth.Login("s3cret")
	require.NoError(t, err)

	r := gin.New()
	r.Use(auth.Middleware())
	r.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuth_Middleware_RejectsAlgNoneToken(t *testing.T) {
	auth, err := NewAdminAuth("s3cret", "jwt-signing-key", time.Minute)
	require.NoError(t, err)

	// A token with alg "none" and no signature must never validate.
	const forged = "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJhZG1pbiJ9."
	assert.Error(t, auth.validate(forged))
}
