// Package batch runs one computation per subject on bounded parallel
// workers. Subjects are isolated from each other: a failing or cancelled
// subject reports its own error and never stops the others.
package batch

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Result of one subject
type Result[T any] struct {
	Subject  string
	Value    T
	Err      error
	Duration time.Duration
}

// Observer is told about every finished subject
type Observer interface {
	Observe(stage string, d time.Duration, err error)
}

// Options for a batch run
type Options struct {
	Stage    string
	Workers  int
	Observer Observer
}

// Run calls fn for every item with at most opts.Workers calls in flight.
// Results come back in input order. Items not yet started when ctx is
// cancelled report ctx.Err() and no value. An item whose fn already
// returned successfully keeps its value: fn may have committed outputs.
func Run[In, Out any](ctx context.Context, items []In, id func(In) string, fn func(context.Context, In) (Out, error), opts Options) []Result[Out] {
	results := make([]Result[Out], len(items))

	var eg errgroup.Group
	if opts.Workers > 0 {
		eg.SetLimit(opts.Workers)
	}

	for i, item := range items {
		results[i].Subject = id(item)
		eg.Go(func() error {
			results[i] = runOne(ctx, results[i].Subject, item, fn, opts)
			return nil
		})
	}
	_ = eg.Wait()

	return results
}

func runOne[In, Out any](ctx context.Context, subject string, item In, fn func(context.Context, In) (Out, error), opts Options) Result[Out] {
	res := Result[Out]{Subject: subject}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	value, err := fn(ctx, item)
	res.Duration = time.Since(start)

	if err != nil {
		res.Err = err
		log.WithFields(log.Fields{
			"stage":   opts.Stage,
			"subject": subject,
		}).WithError(err).Error("Subject failed")
	} else {
		res.Value = value
		log.WithFields(log.Fields{
			"stage":    opts.Stage,
			"subject":  subject,
			"duration": res.Duration,
		}).Info("Subject finished")
	}

	if opts.Observer != nil {
		opts.Observer.Observe(opts.Stage, res.Duration, res.Err)
	}

	return res
}

// Failed returns the results that carry an error
func Failed[T any](results []Result[T]) []Result[T] {
	var failed []Result[T]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}

	return failed
}
