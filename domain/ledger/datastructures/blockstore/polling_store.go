package blockstore

import (
	"sync"
	"time"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/infrastructure/db/database"
	"github.com/pkg/errors"
)

// DatabaseOpener opens the database a PollingStore works on. The store
// closes the returned database before each of its operations returns.
type DatabaseOpener func() (database.Database, error)

const retryOpenInterval = 20 * time.Millisecond

// RetryOpen wraps open so that a failed open, typically because another
// process holds the database, is retried until timeout has passed.
func RetryOpen(open DatabaseOpener, timeout time.Duration) DatabaseOpener {
	return func() (database.Database, error) {
		deadline := time.Now().Add(timeout)
		for {
			db, err := open()
			if err == nil {
				return db, nil
			}
			if time.Now().After(deadline) {
				return nil, err
			}
			log.Tracef("Retrying to open the database: %s", err)
			time.Sleep(retryOpenInterval)
		}
	}
}

// PollingStore is a BlockStore over a database it only holds open for the
// duration of a single operation, so that other processes can write to the
// same database in between. Changes made by other writers are picked up by
// re-reading the collection every poll interval; subscribers are notified
// whenever the chain differs from the one they were last given.
type PollingStore struct {
	mutex      sync.Mutex
	open       DatabaseOpener
	collection *documentCollection
	notifier   *notifier
	offered    []*model.Block

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewPollingStore creates a PollingStore. An interval of zero disables
// polling: only the store's own writes are then notified.
func NewPollingStore(open DatabaseOpener, collection string, cacheSize int,
	interval time.Duration) (*PollingStore, error) {

	if open == nil {
		return nil, errors.New("a database opener is required")
	}
	documents, err := newDocumentCollection(collection, cacheSize)
	if err != nil {
		return nil, err
	}
	ps := &PollingStore{
		open:       open,
		collection: documents,
		notifier:   newNotifier(),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	if interval > 0 {
		spawn("blockstore-poll", func() {
			ps.poll(interval)
		})
	} else {
		close(ps.done)
	}
	return ps, nil
}

// Put stores block under blockID and notifies subscribers. As with
// DatabaseStore, a failure to read the collection back after the write
// only skips the notification.
func (ps *PollingStore) Put(blockID string, block *model.Block) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	return ps.withDatabase(func(db database.Database) error {
		err := ps.collection.put(db, blockID, block)
		if err != nil {
			return err
		}
		snapshot, err := ps.collection.load(db)
		if err != nil {
			log.Errorf("Stored %s but failed reading the collection back, not notifying subscribers: %s",
				blockID, err)
			return nil
		}
		ps.offer(snapshot)
		return nil
	})
}

// Blocks reads every document of the collection and returns the blocks
// ordered by index.
func (ps *PollingStore) Blocks() ([]*model.Block, error) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	return ps.refresh()
}

// Subscribe registers onChange. See model.BlockStore.
func (ps *PollingStore) Subscribe(onChange func(blocks []*model.Block)) (unsubscribe func(), err error) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	snapshot, err := ps.refresh()
	if err != nil {
		return nil, err
	}
	return ps.notifier.subscribe(onChange, snapshot), nil
}

// Close stops polling and cancels every subscription.
func (ps *PollingStore) Close() {
	ps.closeOnce.Do(func() {
		close(ps.quit)
	})
	<-ps.done
	ps.notifier.close()
}

func (ps *PollingStore) poll(interval time.Duration) {
	defer close(ps.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ps.quit:
			return
		case <-ticker.C:
		}

		ps.mutex.Lock()
		_, err := ps.refresh()
		ps.mutex.Unlock()
		if err != nil {
			// Typically another process holds the database
			log.Debugf("Skipped polling the block store: %s", err)
		}
	}
}

// refresh reads the collection and offers it to subscribers if it
// changed. ps.mutex must be held.
func (ps *PollingStore) refresh() (snapshot []*model.Block, err error) {
	err = ps.withDatabase(func(db database.Database) error {
		snapshot, err = ps.collection.load(db)
		return err
	})
	if err != nil {
		return nil, err
	}
	ps.offer(snapshot)
	return snapshot, nil
}

// offer notifies subscribers of snapshot unless it equals the chain they
// were last offered. ps.mutex must be held.
func (ps *PollingStore) offer(snapshot []*model.Block) {
	if sameBlocks(ps.offered, snapshot) {
		return
	}
	log.Debugf("Block store changed: %d blocks", len(snapshot))
	ps.offered = snapshot
	ps.notifier.notify(snapshot)
}

func (ps *PollingStore) withDatabase(operation func(db database.Database) error) error {
	db, err := ps.open()
	if err != nil {
		return errors.Wrap(err, "failed opening the database")
	}
	defer func() {
		closeErr := db.Close()
		if closeErr != nil {
			log.Errorf("Error closing the database: %s", closeErr)
		}
	}()
	return operation(db)
}

func sameBlocks(blocks []*model.Block, other []*model.Block) bool {
	if len(blocks) != len(other) {
		return false
	}
	for i := range blocks {
		if !blocks[i].Equal(other[i]) {
			return false
		}
	}
	return true
}
