package stage

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"

	"hdvapourize/internal/services"
)

// ClassifyContext rewrites err as a cancellation or timeout when ctx
// explains the failure, and as an environment failure when the tool could
// not be started. Other errors are wrapped with fallback.
func ClassifyContext(ctx context.Context, fallback error, stageName, operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return services.Wrap(services.ErrCancelled, stageName, operation, "cancelled", err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, stageName, operation, "stage timed out", err)
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrPermission):
		return services.Wrap(services.ErrEnvironment, stageName, operation, "tool unavailable", err)
	}
	return services.Wrap(fallback, stageName, operation, "", err)
}
