package middleware

import (
	"context"
	"log/slog"

	"github.com/ddeklerk28/groupq/job"
)

// Timeout returns middleware that bounds a single attempt with the job's
// submission-time Timeout option. A zero Timeout passes the context
// through untouched. Cancellation is cooperative: the handler sees its
// context expire and returns context.DeadlineExceeded, which then goes
// through normal retry accounting like any other attempt failure.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.Timeout <= 0 {
			return next(ctx)
		}

		logger.Debug("attempt deadline set",
			slog.String("job_id", j.ID.String()),
			slog.String("kind", j.Kind),
			slog.Duration("timeout", j.Timeout),
		)

		attemptCtx, cancel := context.WithTimeout(ctx, j.Timeout)
		defer cancel()
		return next(attemptCtx)
	}
}
