package runner

import (
	"context"
	"sync"

	"github.com/pithecene-io/verdict/runtime"
)

// SingletonSupplier builds one runner on first use and hands it to every
// caller. A construction error is cached and returned on every call.
type SingletonSupplier struct {
	build func(ctx context.Context) (runtime.Runner, error)

	once   sync.Once
	runner runtime.Runner
	err    error
}

// NewSingletonSupplier creates a supplier around build.
func NewSingletonSupplier(build func(ctx context.Context) (runtime.Runner, error)) *SingletonSupplier {
	return &SingletonSupplier{build: build}
}

// Get returns the shared runner, building it on the first call.
func (s *SingletonSupplier) Get(ctx context.Context) (runtime.Runner, error) {
	s.once.Do(func() {
		s.runner, s.err = s.build(ctx)
	})
	return s.runner, s.err
}

var _ runtime.RunnerSupplier = (*SingletonSupplier)(nil)
