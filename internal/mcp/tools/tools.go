// Package tools defines the shared [Tool] type used by the stock tool
// packages. Each sub-package exports a constructor that returns a slice of
// [Tool] values ready for registration with a [tool.Registry].
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/stockmcp/pkg/tool"
)

// Tool is a descriptor together with the handler that serves it.
type Tool struct {
	// Descriptor declares the tool's name, parameters and result shape.
	Descriptor tool.Descriptor

	// Handler executes the tool against a validated request. Implementations
	// must be safe for concurrent use and must respect ctx.
	Handler tool.Handler

	// Timeout bounds a single execution. Zero means the caller's deadline
	// only.
	Timeout time.Duration
}

// Register adds every tool to r in order and stops at the first failure.
func Register(r *tool.Registry, ts ...Tool) error {
	for _, t := range ts {
		h := t.Handler
		if h != nil && t.Timeout > 0 {
			h = withTimeout(h, t.Timeout)
		}
		if err := r.Register(t.Descriptor, h); err != nil {
			return fmt.Errorf("tools: register %q: %w", t.Descriptor.Name, err)
		}
	}
	return nil
}

func withTimeout(h tool.Handler, d time.Duration) tool.Handler {
	return func(ctx context.Context, req tool.Request) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return h(ctx, req)
	}
}
