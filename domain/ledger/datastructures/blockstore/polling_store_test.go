package blockstore

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/infrastructure/db/database"
	"github.com/kaspanet/ledgerd/infrastructure/db/database/ldb"
	"github.com/pkg/errors"
)

func levelDBOpener(path string) DatabaseOpener {
	return RetryOpen(func() (database.Database, error) {
		return ldb.NewLevelDB(path, 8)
	}, notificationTimeout)
}

func TestPollingStoreSeesOtherWriters(t *testing.T) {
	path, err := ioutil.TempDir("", "TestPollingStoreSeesOtherWriters")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	defer os.RemoveAll(path)

	watcher, err := NewPollingStore(levelDBOpener(path), "blockchain_data", DefaultCacheSize, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewPollingStore: %s", err)
	}
	defer watcher.Close()
	writer, err := NewPollingStore(levelDBOpener(path), "blockchain_data", DefaultCacheSize, 0)
	if err != nil {
		t.Fatalf("NewPollingStore: %s", err)
	}
	defer writer.Close()

	snapshots := make(chan []*model.Block, 100)
	_, err = watcher.Subscribe(func(blocks []*model.Block) {
		snapshots <- blocks
	})
	if err != nil {
		t.Fatalf("Subscribe: %s", err)
	}
	waitForSnapshot(t, "TestPollingStoreSeesOtherWriters", snapshots, 0)

	err = writer.Put(blockID(0), testBlock(0))
	if err != nil {
		t.Fatalf("Put: %s", err)
	}
	first := waitForSnapshot(t, "TestPollingStoreSeesOtherWriters", snapshots, 1)
	if !first[0].Equal(testBlock(0)) {
		t.Fatalf("TestPollingStoreSeesOtherWriters: unexpected block: %s", spew.Sdump(first))
	}

	// An unchanged chain isn't delivered again
	select {
	case snapshot := <-snapshots:
		t.Fatalf("TestPollingStoreSeesOtherWriters: unchanged chain delivered again: %s", spew.Sdump(snapshot))
	case <-time.After(100 * time.Millisecond):
	}

	rewritten := testBlock(0)
	rewritten.Data["item"] = "rewritten by another writer"
	err = writer.Put(blockID(0), rewritten)
	if err != nil {
		t.Fatalf("Put: %s", err)
	}
	second := waitForSnapshot(t, "TestPollingStoreSeesOtherWriters", snapshots, 1)
	if !second[0].Equal(rewritten) {
		t.Fatalf("TestPollingStoreSeesOtherWriters: the rewrite wasn't picked up: %s", spew.Sdump(second))
	}
}

func TestPollingStoreReleasesDatabase(t *testing.T) {
	path, err := ioutil.TempDir("", "TestPollingStoreReleasesDatabase")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	defer os.RemoveAll(path)

	store, err := NewPollingStore(levelDBOpener(path), "blockchain_data", DefaultCacheSize, 0)
	if err != nil {
		t.Fatalf("NewPollingStore: %s", err)
	}
	defer store.Close()
	err = store.Put(blockID(0), testBlock(0))
	if err != nil {
		t.Fatalf("Put: %s", err)
	}

	// The database is free for anyone else between operations
	db, err := ldb.NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("TestPollingStoreReleasesDatabase: NewLevelDB failed while the store was idle: %s", err)
	}
	err = db.Close()
	if err != nil {
		t.Fatalf("Close: %s", err)
	}
}

func TestRetryOpen(t *testing.T) {
	attempts := 0
	open := RetryOpen(func() (database.Database, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("resource temporarily unavailable")
		}
		return unreadableDatabase{}, nil
	}, notificationTimeout)
	_, err := open()
	if err != nil {
		t.Fatalf("TestRetryOpen: unexpected error: %s", err)
	}
	if attempts != 3 {
		t.Fatalf("TestRetryOpen: expected 3 attempts, got %d", attempts)
	}

	open = RetryOpen(func() (database.Database, error) {
		return nil, errors.New("resource temporarily unavailable")
	}, 50*time.Millisecond)
	_, err = open()
	if err == nil {
		t.Fatalf("TestRetryOpen: expected an error once the timeout passed")
	}
}

func TestNewPollingStoreErrors(t *testing.T) {
	_, err := NewPollingStore(nil, "blockchain_data", DefaultCacheSize, 0)
	if err == nil {
		t.Fatalf("TestNewPollingStoreErrors: expected an error for a missing opener")
	}
	_, err = NewPollingStore(levelDBOpener(os.TempDir()), "", DefaultCacheSize, 0)
	if err == nil {
		t.Fatalf("TestNewPollingStoreErrors: expected an error for an empty collection")
	}
}
