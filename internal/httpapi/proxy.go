package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/statehub/internal/logger"
)

// overlayScriptTag is injected just before </body> in proxied HTML documents
// so the admin map view can bootstrap its overlay without the upstream tile
// service knowing anything about this hub.
const overlayScriptTag = `<script src="/static/map-overlay.js"></script></body>`

// mapTileProxy reverse-proxies to an upstream map tile service, matching the
// out-of-scope "Map-tile HTTP proxy" collaborator: it forwards path/query,
// translates upstream failures into 502/503 JSON, and rewrites only HTML
// bodies to inject the overlay bootstrap tag.
type mapTileProxy struct {
	upstream *url.URL
}

func newMapTileProxy(upstream string) (*mapTileProxy, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	return &mapTileProxy{upstream: u}, nil
}

func (p *mapTileProxy) handle(c *gin.Context) {
	proxy := httputil.NewSingleHostReverseProxy(p.upstream)
	path := c.Param("path")

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.URL.Scheme = p.upstream.Scheme
		req.URL.Host = p.upstream.Host
		req.URL.Path = path
		req.Host = p.upstream.Host
		if c.Request.URL.RawQuery != "" {
			req.URL.RawQuery = c.Request.URL.RawQuery
		}
	}

	proxy.ModifyResponse = func(resp *http.Response) error {
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
			return nil
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		resp.Body.Close()

		rewritten := bytes.Replace(body, []byte("</body>"), []byte(overlayScriptTag), 1)
		resp.Body = io.NopCloser(bytes.NewReader(rewritten))
		resp.ContentLength = int64(len(rewritten))
		resp.Header.Set("Content-Length", fmt.Sprintf("%d", len(rewritten)))
		return nil
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Proxy().Warn().Err(err).Str("upstream", p.upstream.String()).Msg("map tile proxy error")
		if strings.Contains(err.Error(), "connection refused") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"SERVICE_UNAVAILABLE","message":"map tile service not ready"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"BAD_GATEWAY","message":"upstream map tile service returned an error"}`))
	}

	proxy.ServeHTTP(c.Writer, c.Request)
}
