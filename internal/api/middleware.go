package api

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Paths reachable without a bearer token. The live feed authenticates inside
// its own handshake.
var publicPaths = map[string]bool{
	"/health":   true,
	"/api/live": true,
}

// withAuth enforces bearer token authentication when a token is configured.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token == "" || publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if s.opts.AllowLoopback && isLocalRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, errors.New("missing Authorization header"))
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, errors.New("invalid Authorization header format, expected 'Bearer <token>'"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(header[len(prefix):]), []byte(s.opts.Token)) != 1 {
			s.logger.Warn("Rejected request with invalid token",
				zap.String("remote_addr", r.RemoteAddr),
				zap.String("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, errors.New("invalid bearer token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withReadOnly rejects state-changing requests in read-only mode. Hook
// execution stays available because it only renders.
func (s *Server) withReadOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.ReadOnly && isMutation(r) {
			writeError(w, http.StatusForbidden, errors.New("server is in read-only mode"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isMutation(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return !strings.HasPrefix(r.URL.Path, "/api/hooks/")
}

// isLocalRequest checks if a request originates from a loopback address.
func isLocalRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}
