package signal

import "sync"

// ChangeNotifier is a single-slot broadcast: every subscriber has a
// buffer-1 channel, and a publish that finds the buffer already full
// leaves it as-is, so a slow subscriber observes "changed since you last
// checked" rather than queuing every intermediate change. Go has no
// built-in equivalent of tokio::sync::broadcast; this is the minimal
// shape the spec's "subscribers see the latest notification" requirement
// needs.
type ChangeNotifier struct {
	mu          sync.Mutex
	subscribers map[*ChangeSubscription]struct{}
}

// NewChangeNotifier returns an empty notifier.
func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{subscribers: make(map[*ChangeSubscription]struct{})}
}

// ChangeSubscription is a single subscriber's view of the notifier.
type ChangeSubscription struct {
	notifier *ChangeNotifier
	ch       chan struct{}
}

// Subscribe registers a new subscriber. Callers must call Unsubscribe
// when done to avoid leaking the registration.
func (n *ChangeNotifier) Subscribe() *ChangeSubscription {
	sub := &ChangeSubscription{notifier: n, ch: make(chan struct{}, 1)}
	n.mu.Lock()
	n.subscribers[sub] = struct{}{}
	n.mu.Unlock()
	return sub
}

// Publish notifies every current subscriber, non-blocking: a subscriber
// that hasn't drained its previous notification simply keeps the one it
// has.
func (n *ChangeNotifier) Publish() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subscribers {
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// Recv returns the subscription's notification channel. A receive
// succeeds once a Publish has occurred since this subscription was
// created or last drained.
func (s *ChangeSubscription) Recv() <-chan struct{} {
	return s.ch
}

// Unsubscribe removes the subscription from the notifier. Safe to call
// more than once.
func (s *ChangeSubscription) Unsubscribe() {
	s.notifier.mu.Lock()
	delete(s.notifier.subscribers, s)
	s.notifier.mu.Unlock()
}
