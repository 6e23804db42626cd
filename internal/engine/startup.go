package engine

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady makes sure the Engine can serve requests. Engines that
// implement Preparer (local backends) get a chance to pull and warm up
// their model; remote engines implementing Checker are probed by listing
// their models. Progress output is written to w.
func EnsureReady(ctx context.Context, e Engine, w io.Writer) error {
	if p, ok := e.(Preparer); ok {
		return p.Prepare(ctx, w)
	}

	c, ok := e.(Checker)
	if !ok {
		fmt.Fprintf(w, "engine %s: no readiness check available\n", e.Name())
		return nil
	}

	n, err := c.Check(ctx)
	if err != nil {
		return fmt.Errorf("engine %s is not reachable: %w", e.Name(), err)
	}
	fmt.Fprintf(w, "engine %s: ready (%d models available)\n", e.Name(), n)
	return nil
}
