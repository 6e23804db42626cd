package ollama

import (
	"context"
	"fmt"
	"io"
	"time"
)

// EnsureReady makes model usable on the server: it fails when Ollama is not
// reachable, pulls the model when it is missing and sends one short chat so
// the first real generation does not pay the load time. A failed warm-up is
// reported on w but is not an error.
func EnsureReady(ctx context.Context, c *Client, model string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running at %s. Start it with: ollama serve", c.baseURL)
	}

	if !c.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		if err := c.PullModel(ctx, model, progressPrinter(w)); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "model %s: ready\n", model)

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := c.Chat(warmCtx, model, []Message{{Role: "user", Content: "ping"}}, nil); err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed: %v\n", model, err)
		return nil
	}
	fmt.Fprintf(w, "model %s: warm\n", model)
	return nil
}

// progressPrinter writes a line whenever the pull status changes or the
// download crosses into the next ten percent.
func progressPrinter(w io.Writer) func(PullProgress) {
	var (
		lastStatus string
		lastDecile int64 = -1
	)
	return func(p PullProgress) {
		if p.Status != lastStatus {
			lastStatus = p.Status
			lastDecile = -1
		}
		if p.Total <= 0 {
			if lastDecile == -1 {
				fmt.Fprintf(w, "  %s\n", p.Status)
				lastDecile = -2
			}
			return
		}
		decile := p.Completed * 10 / p.Total
		if decile == lastDecile {
			return
		}
		lastDecile = decile
		fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, p.Percent())
	}
}
