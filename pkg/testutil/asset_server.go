package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// asset is a canned response for one path.
type asset struct {
	body   string
	status int
	delay  time.Duration
}

// AssetServer simulates the CDN theme resources are loaded from. Unknown
// paths return 404.
type AssetServer struct {
	server     *httptest.Server
	assets     map[string]asset
	assetsMu   sync.RWMutex
	requests   []AssetRequest // Track all requests for verification
	requestsMu sync.Mutex     // Protects requests
}

// NewAssetServer starts an asset server on a random loopback port.
func NewAssetServer() *AssetServer {
	s := &AssetServer{
		assets:   make(map[string]asset),
		requests: make([]AssetRequest, 0),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the base URL with a trailing slash, suitable for
// assets.base_url.
func (s *AssetServer) URL() string {
	return s.server.URL + "/"
}

// Close stops the server.
func (s *AssetServer) Close() {
	s.server.Close()
}

// SetAsset serves body at path with status 200.
func (s *AssetServer) SetAsset(path, body string) {
	s.assetsMu.Lock()
	defer s.assetsMu.Unlock()
	s.assets[normalize(path)] = asset{body: body, status: http.StatusOK}
}

// Fail makes path respond with status.
func (s *AssetServer) Fail(path string, status int) {
	s.assetsMu.Lock()
	defer s.assetsMu.Unlock()
	a := s.assets[normalize(path)]
	a.status = status
	s.assets[normalize(path)] = a
}

// Delay holds every response for path by d before writing it.
func (s *AssetServer) Delay(path string, d time.Duration) {
	s.assetsMu.Lock()
	defer s.assetsMu.Unlock()
	a := s.assets[normalize(path)]
	if a.status == 0 {
		a.status = http.StatusOK
	}
	a.delay = d
	s.assets[normalize(path)] = a
}

func (s *AssetServer) handle(w http.ResponseWriter, r *http.Request) {
	path := normalize(r.URL.Path)

	s.requestsMu.Lock()
	s.requests = append(s.requests, AssetRequest{
		Timestamp: time.Now(),
		Method:    r.Method,
		Path:      path,
	})
	s.requestsMu.Unlock()

	s.assetsMu.RLock()
	a, ok := s.assets[path]
	s.assetsMu.RUnlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-r.Context().Done():
			return
		}
	}

	if a.status != http.StatusOK {
		http.Error(w, http.StatusText(a.status), a.status)
		return
	}

	switch {
	case strings.HasSuffix(path, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(path, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	}
	w.Write([]byte(a.body))
}

// GetRequests returns every request the server received.
func (s *AssetServer) GetRequests() []AssetRequest {
	s.requestsMu.Lock()
	defer s.requestsMu.Unlock()
	return append([]AssetRequest(nil), s.requests...)
}

// ClearRequests forgets the recorded requests.
func (s *AssetServer) ClearRequests() {
	s.requestsMu.Lock()
	defer s.requestsMu.Unlock()
	s.requests = make([]AssetRequest, 0)
}

func normalize(path string) string {
	return strings.TrimPrefix(path, "/")
}
