// Package engine wires all groupq subsystems together and provides the
// primary application-level API for registering processors and
// submitting work.
//
// The engine package exists to break a fundamental import cycle: the
// root groupq package defines Entity and the sentinel errors (imported
// by job, queue, worker, etc.) and therefore cannot import those
// packages back. Engine sits above all subsystem packages and below the
// application layer.
//
// # Building an Engine
//
//	eng, err := engine.New(memory.New(),
//	    engine.WithConfig(groupq.Config{PoolSize: 4, Capacity: 10_000}),
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(myMiddleware),
//	    engine.WithBackoff(backoff.NewExponentialWithJitter(time.Second, time.Minute)),
//	    engine.WithLimits(queue.Config{Kind: "send-email", RatePerSecond: 50}),
//	)
//
// # Registering Processors
//
//	engine.Register(eng, job.NewDefinition("send-email", func(ctx context.Context, p EmailInput) error {
//	    return mailer.Send(ctx, p.To, p.Subject)
//	}))
//
// # Submitting Jobs
//
//	j, err := engine.Submit(ctx, eng, "send-email", EmailInput{To: "user@example.com"},
//	    job.WithGroupKey("customer-42"),
//	    job.WithMaxAttempts(5),
//	)
//
// Jobs sharing a group key execute one at a time in submission order;
// ungrouped jobs run with full pool concurrency.
//
// # Options
//
//   - [WithConfig] — pool size, poll interval, shutdown timeout, capacity
//   - [WithExtension] — register a lifecycle extension
//   - [WithMiddleware] — add a middleware to the execution chain
//   - [WithBackoff] — set the retry backoff strategy
//   - [WithLimits] — configure per-kind rate limits and concurrency
//   - [WithTracerProvider] — set the OpenTelemetry tracer provider
//   - [WithMeterProvider] — set the OpenTelemetry meter provider
package engine
