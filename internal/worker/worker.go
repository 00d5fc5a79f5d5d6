// Package worker owns the three actor task handles (Collator,
// ConfigurationProxy, Submitter) and performs the ordered shutdown join.
package worker

import (
	"context"

	"github.com/fleetsignal/idsclient/internal/collator"
	"github.com/fleetsignal/idsclient/internal/configproxy"
	"github.com/fleetsignal/idsclient/internal/logging"
	"github.com/fleetsignal/idsclient/internal/submitter"
)

// Worker tracks the three spawned actor goroutines and joins them in the
// order that respects the pipeline's shutdown dependencies: the
// ConfigurationProxy and Collator close independently once the Recorder's
// channels are closed, and the Submitter is last because it is the only
// task whose final action (a flush) depends on nothing downstream.
type Worker struct {
	log logging.Component

	collatorDone    chan error
	configProxyDone chan error
	submitterDone   chan error
}

// Executable is satisfied by each actor's Execute method.
type Executable interface {
	Execute(ctx context.Context) error
}

// Spawn starts all three actors on their own goroutines against ctx.
func Spawn(ctx context.Context, c *collator.Collator, p *configproxy.ConfigurationProxy, s *submitter.Submitter, log logging.Component) *Worker {
	if log == nil {
		log = logging.NewNop()
	}
	w := &Worker{
		log:             log,
		collatorDone:    make(chan error, 1),
		configProxyDone: make(chan error, 1),
		submitterDone:   make(chan error, 1),
	}

	go func() { w.collatorDone <- c.Execute(ctx) }()
	go func() { w.configProxyDone <- p.Execute(ctx) }()
	go func() { w.submitterDone <- s.Execute(ctx) }()

	return w
}

// Join blocks until all three tasks have exited, in the order
// ConfigurationProxy, Collator, Submitter. The only error returned is the
// Collator's failure to forward its final FlushNow; every other task join
// failure is logged, never surfaced, per the shutdown error policy.
func (w *Worker) Join() error {
	if err := <-w.configProxyDone; err != nil {
		w.log.Debugf("worker: configuration proxy task exited with error: %v", err)
	}

	fatal := <-w.collatorDone
	if fatal != nil {
		w.log.Errorf("worker: collator failed to forward its final flush: %v", fatal)
	}

	if err := <-w.submitterDone; err != nil {
		w.log.Debugf("worker: submitter task exited with error: %v", err)
	}

	return fatal
}
