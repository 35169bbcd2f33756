package theme

import (
	"errors"
	"fmt"
)

// ErrResourceLoad matches any *ResourceLoadError with errors.Is.
var ErrResourceLoad = errors.New("theme resource failed to load")

// ResourceLoadError names the stylesheet or script that failed to load
// during activation.
type ResourceLoadError struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *ResourceLoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to load %s: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("failed to load %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *ResourceLoadError) Unwrap() error {
	return e.Err
}

func (e *ResourceLoadError) Is(target error) bool {
	return target == ErrResourceLoad
}
