package theme

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// DefaultCacheTTL is how long a successful fetch is remembered.
const DefaultCacheTTL = 5 * time.Minute

// maxResourceSize caps how much of a resource body is hashed.
const maxResourceSize = 16 << 20

// HTTPFetcher confirms theme resources load over HTTP. Relative URLs are
// resolved against a base URL. Successful fetches are cached by absolute URL
// together with the blake3 fingerprint of the body.
type HTTPFetcher struct {
	client *http.Client
	base   *url.URL
	cache  *gocache.Cache
	logger *zap.Logger
}

// NewHTTPFetcher creates a fetcher. An empty baseURL leaves relative URLs
// unresolvable. A nil client uses http.DefaultClient.
func NewHTTPFetcher(baseURL string, cacheTTL time.Duration, client *http.Client, logger *zap.Logger) (*HTTPFetcher, error) {
	var base *url.URL
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse asset base URL: %w", err)
		}
		base = u
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPFetcher{
		client: client,
		base:   base,
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		logger: logger.Named("fetcher"),
	}, nil
}

// Resolve returns the absolute URL for ref.
func (f *HTTPFetcher) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid resource URL %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if f.base == nil {
		return "", fmt.Errorf("relative resource URL %q without an asset base URL", ref)
	}
	return f.base.ResolveReference(u).String(), nil
}

// Fetch downloads ref and returns the hex blake3 fingerprint of its body.
// Any non-2xx status is a load failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, kind Kind, ref string) (string, error) {
	abs, err := f.Resolve(ref)
	if err != nil {
		return "", err
	}

	if v, found := f.cache.Get(abs); found {
		if fingerprint, ok := v.(string); ok {
			return fingerprint, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, abs, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", abs, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, abs)
	}

	hasher := blake3.New()
	if _, err := io.Copy(hasher, io.LimitReader(resp.Body, maxResourceSize)); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", abs, err)
	}
	fingerprint := hex.EncodeToString(hasher.Sum(nil))

	f.cache.SetDefault(abs, fingerprint)
	f.logger.Debug("Resource fetched",
		zap.String("kind", string(kind)),
		zap.String("url", abs),
		zap.String("fingerprint", fingerprint))

	return fingerprint, nil
}

// Forget drops every cached fetch result.
func (f *HTTPFetcher) Forget() {
	f.cache.Flush()
}
