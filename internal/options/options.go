// Package options implements the functional options shared by the kvcore
// constructors (alloc.New, cell.NewEnv, strmap.New).
package options

import "errors"

// Option configures a value of type T and may reject the configuration.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a function to the Option interface.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New creates an option from a validating function.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// NoError creates an option from a function that cannot fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)
			return nil
		},
	}
}

// Apply applies every option in order and returns all rejections joined, so
// a caller passing several bad options sees each of them.
func Apply[T any](target T, opts ...Option[T]) error {
	var errList []error
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(target); err != nil {
			errList = append(errList, err)
		}
	}

	return errors.Join(errList...)
}
