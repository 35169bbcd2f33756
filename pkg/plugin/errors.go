package plugin

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrDuplicate         = errors.New("plugin already registered")
	ErrMissingDependency = errors.New("missing dependencies")
	ErrInitialization    = errors.New("plugin initialization failed")
	ErrNotFound          = errors.New("plugin not registered")
	ErrServiceNotFound   = errors.New("service not found")
)

// DuplicateError is returned when a plugin name is already registered.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("plugin %s is already registered", e.Name)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// MissingDependencyError names every declared dependency that is not
// registered, in declaration order.
type MissingDependencyError struct {
	Plugin  string
	Missing []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("plugin %s: missing dependencies: %s", e.Plugin, strings.Join(e.Missing, ", "))
}

func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

// InitializationError is returned when a declared service could not be
// resolved. The plugin stays recorded in the failed state.
type InitializationError struct {
	Plugin  string
	Service ServiceID
	Err     error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("plugin %s: failed to initialize service %s: %v", e.Plugin, e.Service, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

func (e *InitializationError) Is(target error) bool {
	return target == ErrInitialization
}

// NotFoundError is returned when the target plugin is not registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("plugin %s is not registered", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// HookError wraps the failure of a single hook callback.
type HookError struct {
	Hook   string
	Plugin string
	Err    error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s: plugin %s: %v", e.Hook, e.Plugin, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
