package blockstore

import (
	"sync"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
)

// notifier fans block set snapshots out to subscribers. Every subscriber
// has its own goroutine, so a slow callback never blocks the store or the
// other subscribers. Snapshots a subscriber had no time to see are
// skipped: it always receives the latest one.
type notifier struct {
	mutex         sync.Mutex
	subscriptions map[uint64]*subscription
	nextID        uint64
	isClosed      bool
}

func newNotifier() *notifier {
	return &notifier{subscriptions: make(map[uint64]*subscription)}
}

type subscription struct {
	onChange func(blocks []*model.Block)

	mutex    sync.Mutex
	latest   []*model.Block
	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// subscribe registers onChange and schedules the delivery of initial.
func (n *notifier) subscribe(onChange func(blocks []*model.Block), initial []*model.Block) (unsubscribe func()) {
	sub := &subscription{
		onChange: onChange,
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	n.mutex.Lock()
	if n.isClosed {
		n.mutex.Unlock()
		close(sub.done)
		return func() {}
	}
	id := n.nextID
	n.nextID++
	n.subscriptions[id] = sub
	sub.offer(initial)
	n.mutex.Unlock()

	spawn("blockstore-subscription", sub.deliver)

	return func() {
		n.mutex.Lock()
		delete(n.subscriptions, id)
		n.mutex.Unlock()

		sub.stop()
	}
}

// notify offers snapshot to every subscriber. Callers must serialize
// notify calls so that snapshots are offered in the order they were taken.
func (n *notifier) notify(snapshot []*model.Block) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	for _, sub := range n.subscriptions {
		sub.offer(snapshot)
	}
}

// close cancels every subscription and waits for in-flight callbacks.
func (n *notifier) close() {
	n.mutex.Lock()
	n.isClosed = true
	subscriptions := n.subscriptions
	n.subscriptions = make(map[uint64]*subscription)
	n.mutex.Unlock()

	for _, sub := range subscriptions {
		sub.stop()
	}
}

// stop ends delivery and waits for an in-flight callback. It must not be
// called from within the callback itself.
func (s *subscription) stop() {
	s.quitOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
}

func (s *subscription) offer(snapshot []*model.Block) {
	s.mutex.Lock()
	s.latest = snapshot
	s.mutex.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) deliver() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}

		// Prefer quitting over a pending delivery
		select {
		case <-s.quit:
			return
		default:
		}

		s.mutex.Lock()
		snapshot := s.latest
		s.mutex.Unlock()

		s.onChange(model.CloneBlocks(snapshot))
	}
}
