package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name            string
		middleware      gin.HandlerFunc
		expectedHeaders map[string]string
		checkContains   map[string]string
	}{
		{
			name:       "SecurityHeaders sets all required headers",
			middleware: SecurityHeaders(),
			expectedHeaders: map[string]string{
				"X-Content-Type-Options": "nosniff",
				"X-Frame-Options":        "DENY",
				"X-XSS-Protection":       "1; mode=block",
			},
			checkContains: map[string]string{
				"Strict-Transport-Security": "max-age=31536000",
				"Content-Security-Policy":   "default-src 'none'",
				"Referrer-Policy":           "strict-origin-when-cross-origin",
			},
		},
		{
			name:       "SecurityHeadersRelaxed sets relaxed CSP",
			middleware: SecurityHeadersRelaxed(),
			expectedHeaders: map[string]string{
				"X-Content-Type-Options": "nosniff",
				"X-Frame-Options":        "SAMEORIGIN",
			},
			checkContains: map[string]string{
				"Content-Security-Policy": "default-src 'none'",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(tt.middleware)
			router.GET("/test", func(c *gin.Context) {
				c.String(http.StatusOK, "test")
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			for header, expected := range tt.expectedHeaders {
				actual := w.Header().Get(header)
				assert.Equal(t, expected, actual, "Header %s should match", header)
			}

			for header, expected := range tt.checkContains {
				actual := w.Header().Get(header)
				assert.Contains(t, actual, expected, "Header %s should contain %s", header, expected)
			}
		})
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	hsts := w.Header().Get("Strict-Transport-Security")
	require.NotEmpty(t, hsts, "HSTS header should be set")
	assert.Contains(t, hsts, "max-age=31536000", "HSTS should have 1 year max-age")
	assert.Contains(t, hsts, "includeSubDomains", "HSTS should include subdomains")
}

func TestSecurityHeaders_ConnectSrcAllowsWebSocketOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	csp := w.Header().Get("Content-Security-Policy")
	require.NotEmpty(t, csp, "CSP header should be set")
	assert.Contains(t, csp, "default-src 'none'", "CSP should default-deny")
	assert.Contains(t, csp, "connect-src 'self'", "CSP should allow same-origin WebSocket upgrades")
	assert.Contains(t, csp, "frame-ancestors 'none'", "CSP should forbid framing")
}

func TestSecurityHeaders_XFrameOptions(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		middleware gin.HandlerFunc
		expected   string
	}{
		{
			name:       "SecurityHeaders uses DENY",
			middleware: SecurityHeaders(),
			expected:   "DENY",
		},
		{
			name:       "SecurityHeadersRelaxed uses SAMEORIGIN",
			middleware: SecurityHeadersRelaxed(),
			expected:   "SAMEORIGIN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(tt.middleware)
			router.GET("/test", func(c *gin.Context) {
				c.String(http.StatusOK, "test")
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			xfo := w.Header().Get("X-Frame-Options")
			assert.Equal(t, tt.expected, xfo, "X-Frame-Options should be %s", tt.expected)
		})
	}
}

func TestSecurityHeaders_PermissionsPolicy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	pp := w.Header().Get("Permissions-Policy")
	require.NotEmpty(t, pp, "Permissions-Policy header should be set")
	assert.Contains(t, pp, "geolocation=()", "Geolocation should be disabled")
	assert.Contains(t, pp, "microphone=()", "Microphone should be disabled")
	assert.Contains(t, pp, "camera=()", "Camera should be disabled")
}

func TestSecurityHeaders_ReferrerPolicy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	rp := w.Header().Get("Referrer-Policy")
	require.NotEmpty(t, rp, "Referrer-Policy header should be set")
	assert.Contains(t, rp, "strict-origin", "Referrer-Policy should be strict")
}

func TestSecurityHeaders_CacheControlExemptsHealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, "") })
	router.GET("/admin/marks", func(c *gin.Context) { c.String(http.StatusOK, "{}") })

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Cache-Control"), "expected no Cache-Control override on %s", path)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/marks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store", "expected no-store on a regular API path")
}

func TestSecurityHeaders_AllHeadersPresent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "test")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	requiredHeaders := []string{
		"Strict-Transport-Security",
		"X-Content-Type-Options",
		"X-Frame-Options",
		"X-XSS-Protection",
		"Content-Security-Policy",
		"Referrer-Policy",
		"Permissions-Policy",
	}

	for _, header := range requiredHeaders {
		value := w.Header().Get(header)
		assert.NotEmpty(t, value, "Header %s should be present", header)
	}
}
