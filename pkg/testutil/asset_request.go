package testutil

import "time"

// AssetRequest records a request for testing/verification
type AssetRequest struct {
	Timestamp time.Time
	Method    string
	Path      string
}

// FilterRequests filters requests by path
func FilterRequests(requests []AssetRequest, path string) []AssetRequest {
	var filtered []AssetRequest
	for _, req := range requests {
		if req.Path == normalize(path) {
			filtered = append(filtered, req)
		}
	}
	return filtered
}

// CountRequests returns how many times path was requested
func CountRequests(requests []AssetRequest, path string) int {
	return len(FilterRequests(requests, path))
}
