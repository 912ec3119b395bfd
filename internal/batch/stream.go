package batch

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type loaded[T any] struct {
	index int
	value T
	err   error
}

// Stream loads items on a single producer goroutine, keeping at most
// prefetch loaded items waiting, while opts.Workers consumers compute.
// Loading is usually I/O bound and computing CPU bound, so the two overlap.
// A load error becomes that subject's result.
func Stream[In, Data, Out any](
	ctx context.Context,
	items []In,
	id func(In) string,
	load func(context.Context, In) (Data, error),
	fn func(context.Context, Data) (Out, error),
	prefetch int,
	opts Options,
) []Result[Out] {
	if prefetch < 1 {
		prefetch = 1
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	queue := make(chan loaded[Data], prefetch)
	go func() {
		defer close(queue)
		for i, item := range items {
			if ctx.Err() != nil {
				queue <- loaded[Data]{index: i, err: ctx.Err()}
				continue
			}
			data, err := load(ctx, item)
			queue <- loaded[Data]{index: i, value: data, err: err}
		}
	}()

	results := make([]Result[Out], len(items))
	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			for job := range queue {
				subject := id(items[job.index])
				if job.err != nil {
					results[job.index] = Result[Out]{Subject: subject, Err: job.err}
					log.WithFields(log.Fields{
						"stage":   opts.Stage,
						"subject": subject,
					}).WithError(job.err).Error("Subject could not be loaded")
					if opts.Observer != nil {
						opts.Observer.Observe(opts.Stage, 0, job.err)
					}
					continue
				}
				results[job.index] = runOne(ctx, subject, job.value, fn, opts)
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}

	return results
}
