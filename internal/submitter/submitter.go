// Package submitter implements the Submitter actor: it buffers events
// and flushes them as a single batch either on a timer or on demand.
package submitter

import (
	"context"
	"time"

	"github.com/fleetsignal/idsclient/internal/logging"
	"github.com/fleetsignal/idsclient/internal/model"
	"github.com/fleetsignal/idsclient/internal/signal"
	"github.com/fleetsignal/idsclient/internal/transport"
)

const flushInterval = 30 * time.Second

// Submitter buffers CollatedEvents and ships them in batches. There is
// never more than one flush in flight at a time; a failed flush retains
// the buffer for the next attempt rather than retrying immediately.
type Submitter struct {
	transport transport.Transport
	log       logging.Component
	incoming  <-chan signal.CollatedSignal

	events []model.Event
}

// New constructs a Submitter reading from incoming.
func New(transportImpl transport.Transport, incoming <-chan signal.CollatedSignal, log logging.Component) *Submitter {
	if log == nil {
		log = logging.NewNop()
	}
	return &Submitter{transport: transportImpl, log: log, incoming: incoming}
}

// Execute runs the flush loop until incoming is closed or ctx is
// cancelled, performing one final flush before returning.
func (s *Submitter) Execute(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case sig, ok := <-s.incoming:
			if !ok {
				s.flush(ctx)
				return nil
			}
			switch v := sig.(type) {
			case signal.CollatedEvent:
				s.events = append(s.events, v.Event)
			case signal.CollatedFlushNow:
				s.flush(ctx)
				ticker.Reset(flushInterval)
			}

		case <-ticker.C:
			s.flush(ctx)

		case <-ctx.Done():
			s.flush(ctx)
			return nil
		}
	}
}

func (s *Submitter) flush(ctx context.Context) {
	if len(s.events) == 0 {
		return
	}

	batch := model.Batch{
		SentAt: time.Now().UTC().Format(time.RFC3339),
		Batch:  s.events,
	}

	if err := s.transport.Submit(ctx, batch); err != nil {
		s.log.Debugf("submitter: flush of %d event(s) failed, retaining buffer: %v", len(s.events), err)
		return
	}

	s.log.Tracef("submitter: flushed %d event(s)", len(s.events))
	s.events = nil
}
