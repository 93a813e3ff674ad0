// Package middleware - securityheaders.go
//
// Security headers applied to every HTTP response the hub serves: the REST
// admin/control endpoints and the HTTP upgrade handshake for the two
// WebSocket endpoints (/ws/subscriber, /ws/admin). There is no server-side
// HTML template rendering anywhere in this service, so unlike a page-serving
// app there is no CSP nonce to thread through to a template — every response
// here is either a JSON body or a protocol upgrade, and the policy below is
// static accordingly.
package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders adds the hub's security headers to every response. Should
// be applied ahead of all routes.
//
// Headers:
//   - Strict-Transport-Security: force HTTPS for 1 year, including subdomains
//   - X-Content-Type-Options: block MIME sniffing
//   - X-Frame-Options: deny framing (no UI to clickjack)
//   - X-XSS-Protection: legacy filter for old browsers
//   - Content-Security-Policy: default-deny; this origin may still open the
//     WebSocket endpoints it serves
//   - Referrer-Policy: strip referrer info sent cross-origin
//   - Permissions-Policy: disable browser features this service never needs
//   - Cache-Control: no-store on everything except /health and /metrics
//   - Server: blanked, don't advertise version info
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Content-Security-Policy",
			"default-src 'none'; "+
				"connect-src 'self'; "+
				"frame-ancestors 'none'; "+
				"base-uri 'none'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy",
			"geolocation=(), "+
				"microphone=(), "+
				"camera=(), "+
				"payment=(), "+
				"usb=()")

		if path := c.Request.URL.Path; path != "/health" && path != "/metrics" {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
			c.Header("Pragma", "no-cache")
		}

		c.Header("Server", "")

		c.Next()
	}
}

// SecurityHeadersRelaxed provides a development-mode header set: same-origin
// framing allowed and a CSP that tolerates a local dev proxy on any port.
// Never use outside local development.
func SecurityHeadersRelaxed() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "SAMEORIGIN")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Content-Security-Policy",
			"default-src 'none'; "+
				"connect-src 'self' ws: wss: http: https:; "+
				"frame-ancestors 'self'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
