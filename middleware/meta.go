package middleware

import (
	"context"

	"github.com/ddeklerk28/groupq/job"
)

// Meta returns middleware that injects the job's identity (ID, kind,
// group key, attempt number) into the handler context. Handlers retrieve
// it with job.FromContext to log or to branch on the attempt count.
func Meta() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx = job.NewContext(ctx, job.Meta{
			JobID:    j.ID,
			Kind:     j.Kind,
			GroupKey: j.GroupKey,
			Attempt:  j.Attempts,
		})
		return next(ctx)
	}
}
