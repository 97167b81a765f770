package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
)

// Proxy forwards admitted requests to one backend target. Admission
// control happens before this hop; the backend is an external
// collaborator the gateway does not manage.
type Proxy struct {
	target *url.URL
	rp     *httputil.ReverseProxy
}

func New(targetURL string) (*Proxy, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy target %q: %w", targetURL, err)
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, `{"error":"Backend unavailable"}`)
	}

	return &Proxy{target: target, rp: rp}, nil
}

// Forwards the request to the backend
func (p *Proxy) Handle(c *gin.Context) {
	req := c.Request

	req.Header.Set("X-Forwarded-Host", req.Host)
	if clientIP := c.ClientIP(); clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}
	req.Host = p.target.Host

	p.rp.ServeHTTP(c.Writer, req)
}

func (p *Proxy) Target() string {
	return p.target.String()
}
