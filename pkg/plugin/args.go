package plugin

import "fmt"

// Arg returns args[i] as T. Hooks use it to check their argument contract.
func Arg[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("missing argument %d", i)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("argument %d: expected %T, got %T", i, zero, args[i])
	}
	return v, nil
}

// OptionalArg is like Arg but returns def when args[i] is absent.
func OptionalArg[T any](args []any, i int, def T) (T, error) {
	if i >= len(args) {
		return def, nil
	}
	return Arg[T](args, i)
}
