// Package configproxy implements the ConfigurationProxy actor: it caches
// the latest check-in document and refreshes it on demand or on a
// periodic timer, broadcasting change notifications to subscribers.
package configproxy

import (
	"context"
	"sync"
	"time"

	"github.com/fleetsignal/idsclient/internal/logging"
	"github.com/fleetsignal/idsclient/internal/model"
	"github.com/fleetsignal/idsclient/internal/signal"
	"github.com/fleetsignal/idsclient/internal/transport"
)

const periodicRefreshInterval = 2 * time.Hour

// refreshRequest is handed from the incoming sub-task to the refresh
// sub-task. Splitting the two means a caller that abandons its wait and
// then drops the last Recorder can't tear down an in-flight refresh.
type refreshRequest struct {
	sessionProperties *model.Map[any]
	reply             chan signal.CheckInReply
}

// ConfigurationProxy owns the cached Checkin and its refresh lifecycle.
type ConfigurationProxy struct {
	transport transport.Transport
	log       logging.Component
	notifier  *signal.ChangeNotifier

	// collatorChan is used only by the periodic refresh sub-task, which has
	// no Recorder to orchestrate GetSessionProperties/UpdateFeatureFacts on
	// its behalf: it talks to the Collator directly.
	collatorChan chan<- signal.RawSignal

	incoming    <-chan signal.ConfigurationProxySignal
	refreshChan chan refreshRequest

	mu    sync.RWMutex
	cache *model.Checkin
}

// New constructs a ConfigurationProxy. incoming is consumed by the
// incoming sub-task; collatorChan is the Collator's RawSignal channel,
// used only by the periodic refresh sub-task.
func New(
	transportImpl transport.Transport,
	incoming <-chan signal.ConfigurationProxySignal,
	collatorChan chan<- signal.RawSignal,
	log logging.Component,
) *ConfigurationProxy {
	if log == nil {
		log = logging.NewNop()
	}
	return &ConfigurationProxy{
		transport:    transportImpl,
		log:          log,
		notifier:     signal.NewChangeNotifier(),
		collatorChan: collatorChan,
		incoming:     incoming,
		refreshChan:  make(chan refreshRequest, 100),
	}
}

// Execute runs both internal sub-tasks until incoming is closed or ctx is
// cancelled. It never returns an error: a single failed refresh or a
// caller that abandons a reply never brings the proxy down.
func (p *ConfigurationProxy) Execute(ctx context.Context) error {
	refreshDone := make(chan struct{})
	go func() {
		p.runRefresh(ctx)
		close(refreshDone)
	}()

	p.runIncoming(ctx)
	<-refreshDone
	return nil
}

func (p *ConfigurationProxy) runIncoming(ctx context.Context) {
	defer close(p.refreshChan)
	for {
		select {
		case sig, ok := <-p.incoming:
			if !ok {
				return
			}
			p.handleIncoming(ctx, sig)
		case <-ctx.Done():
			return
		}
	}
}

func (p *ConfigurationProxy) handleIncoming(ctx context.Context, sig signal.ConfigurationProxySignal) {
	switch s := sig.(type) {
	case signal.QueryIfCheckedIn:
		p.mu.RLock()
		checkedIn := p.cache != nil
		p.mu.RUnlock()
		status := signal.NotCheckedIn
		if checkedIn {
			status = signal.CheckedIn
		}
		trySend(s.Reply, status)

	case signal.GetFeature:
		p.mu.RLock()
		var feat *model.Feature
		if p.cache != nil && p.cache.Options != nil {
			if f, ok := p.cache.Options.Get(s.Name); ok {
				feat = &f
			}
		}
		p.mu.RUnlock()
		trySend(s.Reply, feat)

	case signal.Subscribe:
		trySend(s.Reply, p.notifier.Subscribe())

	case signal.CheckInNow:
		req := refreshRequest{sessionProperties: s.SessionProperties, reply: s.Reply}
		select {
		case p.refreshChan <- req:
		case <-ctx.Done():
		}
	}
}

func (p *ConfigurationProxy) runRefresh(ctx context.Context) {
	ticker := time.NewTicker(periodicRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case req, ok := <-p.refreshChan:
			if !ok {
				return
			}
			reply := p.refresh(ctx, req.sessionProperties)
			trySend(req.reply, reply)
			ticker.Reset(periodicRefreshInterval)

		case <-ticker.C:
			props := p.requestSessionProperties(ctx)
			reply := p.refresh(ctx, props)
			p.pushFeatureFacts(ctx, reply.FeatureFacts)

		case <-ctx.Done():
			return
		}
	}
}

// refresh performs one check-in attempt. On transport failure the cache
// is left untouched and the current (possibly nil) cache is returned. On
// success the cache is replaced and subscribers notified only if the
// fresh document differs structurally from what's cached.
func (p *ConfigurationProxy) refresh(ctx context.Context, sessionProperties *model.Map[any]) signal.CheckInReply {
	fresh, err := p.transport.Checkin(ctx, sessionProperties)

	p.mu.RLock()
	cached := p.cache
	p.mu.RUnlock()

	if err != nil {
		p.log.Debugf("configproxy: check-in refresh failed, keeping cached document: %v", err)
		return signal.CheckInReply{Checkin: cached, FeatureFacts: cached.AsFeatureFacts()}
	}

	if !fresh.Equal(cached) {
		p.mu.Lock()
		p.cache = fresh
		p.mu.Unlock()
		p.notifier.Publish()
	}

	p.mu.RLock()
	current := p.cache
	p.mu.RUnlock()
	return signal.CheckInReply{Checkin: current, FeatureFacts: current.AsFeatureFacts()}
}

func (p *ConfigurationProxy) requestSessionProperties(ctx context.Context) *model.Map[any] {
	reply := make(chan *model.Map[any], 1)
	select {
	case p.collatorChan <- signal.GetSessionProperties{Reply: reply}:
	case <-ctx.Done():
		return model.NewMap[any]()
	}

	select {
	case props := <-reply:
		return props
	case <-ctx.Done():
		return model.NewMap[any]()
	}
}

func (p *ConfigurationProxy) pushFeatureFacts(ctx context.Context, ff *model.Map[any]) {
	select {
	case p.collatorChan <- signal.UpdateFeatureFacts{FeatureFacts: ff}:
	case <-ctx.Done():
	}
}

// trySend delivers v to ch without blocking. Every reply channel in this
// package is a caller-owned one-shot: a caller that cancelled its wait
// leaves nobody listening, which is expected, not an error.
func trySend[T any](ch chan T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}
