package blockstore

import (
	"bytes"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/ruleerrors"
	"github.com/kaspanet/ledgerd/domain/ledger/utils/serialization"
	"github.com/kaspanet/ledgerd/infrastructure/db/database"
	"github.com/pkg/errors"
)

// DefaultCacheSize is the number of decoded block documents a
// DatabaseStore keeps by default.
const DefaultCacheSize = 1024

// DatabaseStore is a BlockStore that keeps every block as a JSON document
// under <collection>/<blockID> in a key-value database it holds open.
type DatabaseStore struct {
	mutex      sync.Mutex
	db         database.Database
	collection *documentCollection
	notifier   *notifier
}

// NewDatabaseStore creates a DatabaseStore over db. The database stays
// owned by the caller.
func NewDatabaseStore(db database.Database, collection string, cacheSize int) (*DatabaseStore, error) {
	documents, err := newDocumentCollection(collection, cacheSize)
	if err != nil {
		return nil, err
	}
	return &DatabaseStore{
		db:         db,
		collection: documents,
		notifier:   newNotifier(),
	}, nil
}

// Put stores block under blockID and notifies subscribers. Once the
// document is written Put succeeds; if the collection can't be read back
// the change notification is skipped.
func (ds *DatabaseStore) Put(blockID string, block *model.Block) error {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	err := ds.collection.put(ds.db, blockID, block)
	if err != nil {
		return err
	}

	snapshot, err := ds.collection.load(ds.db)
	if err != nil {
		log.Errorf("Stored %s but failed reading the collection back, not notifying subscribers: %s", blockID, err)
		return nil
	}
	ds.notifier.notify(snapshot)
	return nil
}

// Blocks reads every document of the collection and returns the blocks
// ordered by index.
func (ds *DatabaseStore) Blocks() ([]*model.Block, error) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	return ds.collection.load(ds.db)
}

// Subscribe registers onChange. See model.BlockStore.
func (ds *DatabaseStore) Subscribe(onChange func(blocks []*model.Block)) (unsubscribe func(), err error) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	snapshot, err := ds.collection.load(ds.db)
	if err != nil {
		return nil, err
	}
	return ds.notifier.subscribe(onChange, snapshot), nil
}

// Close cancels every subscription. It doesn't close the database.
func (ds *DatabaseStore) Close() {
	ds.notifier.close()
}

// documentCollection reads and writes the block documents of a single
// collection, caching decoded documents.
type documentCollection struct {
	bucket *database.Bucket
	cache  *lru.Cache
}

// cachedDocument pairs a raw document with its decoded block. The raw
// bytes are kept so that a document rewritten behind the store's back is
// decoded again instead of being served from the cache.
type cachedDocument struct {
	raw   []byte
	block *model.Block
}

func newDocumentCollection(collection string, cacheSize int) (*documentCollection, error) {
	if collection == "" {
		return nil, errors.New("collection must not be empty")
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrapf(err, "failed creating a document cache of size %d", cacheSize)
	}
	return &documentCollection{
		bucket: database.MakeBucket([]byte(collection)),
		cache:  cache,
	}, nil
}

func (dc *documentCollection) put(db database.Database, blockID string, block *model.Block) error {
	if block == nil {
		return errors.Wrapf(ruleerrors.ErrNilBlock, "putting %s", blockID)
	}
	document, err := serialization.SerializeBlock(block)
	if err != nil {
		return errors.Wrapf(err, "failed serializing %s", blockID)
	}
	err = db.Put(dc.bucket.Key([]byte(blockID)), document)
	if err != nil {
		return errors.Wrapf(err, "failed storing %s", blockID)
	}
	log.Tracef("Stored %s", blockID)
	return nil
}

func (dc *documentCollection) load(db database.Database) (blocks []*model.Block, err error) {
	cursor, err := db.Cursor(dc.bucket)
	if err != nil {
		return nil, err
	}
	defer func() {
		closeErr := cursor.Close()
		if err == nil {
			err = closeErr
		}
	}()

	var ids []string
	for ok := cursor.First(); ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return nil, err
		}
		value, err := cursor.Value()
		if err != nil {
			return nil, err
		}
		blockID := string(key.Suffix())
		block, err := dc.decode(blockID, value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, blockID)
		blocks = append(blocks, block)
	}

	sortBlocks(ids, blocks)
	return blocks, nil
}

func (dc *documentCollection) decode(blockID string, document []byte) (*model.Block, error) {
	if cached, ok := dc.cache.Get(blockID); ok {
		entry := cached.(*cachedDocument)
		if bytes.Equal(entry.raw, document) {
			return entry.block.Clone(), nil
		}
	}

	block, err := serialization.DeserializeBlock(document)
	if err != nil {
		return nil, errors.Wrapf(err, "failed decoding %s", blockID)
	}
	raw := make([]byte, len(document))
	copy(raw, document)
	dc.cache.Add(blockID, &cachedDocument{raw: raw, block: block.Clone()})
	return block, nil
}
