package ldb

import (
	"io/ioutil"
	"os"
	"reflect"
	"testing"

	"github.com/kaspanet/ledgerd/infrastructure/db/database"
)

func prepareDatabaseForTest(t *testing.T, testName string) (ldb *LevelDB, teardownFunc func()) {
	// Create a temp db to run tests against
	path, err := ioutil.TempDir("", testName)
	if err != nil {
		t.Fatalf("%s: TempDir unexpectedly "+
			"failed: %s", testName, err)
	}
	ldb, err = NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("%s: NewLevelDB unexpectedly "+
			"failed: %s", testName, err)
	}
	teardownFunc = func() {
		err = ldb.Close()
		if err != nil {
			t.Fatalf("%s: Close unexpectedly "+
				"failed: %s", testName, err)
		}
		_ = os.RemoveAll(path)
	}
	return ldb, teardownFunc
}

func TestLevelDBSanity(t *testing.T) {
	ldb, teardownFunc := prepareDatabaseForTest(t, "TestLevelDBSanity")
	defer teardownFunc()

	// Put something into the db
	key := database.MakeBucket([]byte("blockchain_data")).Key([]byte("block_0"))
	putData := []byte("Hello world!")
	err := ldb.Put(key, putData)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Put returned "+
			"unexpected error: %s", err)
	}

	// Get from the key previously put to
	getData, err := ldb.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Get returned "+
			"unexpected error: %s", err)
	}

	// Make sure that the put data and the get data are equal
	if !reflect.DeepEqual(getData, putData) {
		t.Fatalf("TestLevelDBSanity: get data and "+
			"put data are not equal. Put: %s, got: %s",
			string(putData), string(getData))
	}

	exists, err := ldb.Has(key)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Has returned "+
			"unexpected error: %s", err)
	}
	if !exists {
		t.Fatalf("TestLevelDBSanity: Has " +
			"unexpectedly returned that the key does not exist")
	}

	err = ldb.Delete(key)
	if err != nil {
		t.Fatalf("TestLevelDBSanity: Delete returned "+
			"unexpected error: %s", err)
	}
	_, err = ldb.Get(key)
	if !database.IsNotFoundError(err) {
		t.Fatalf("TestLevelDBSanity: Get after Delete "+
			"returned wrong error: %v", err)
	}
}

func TestLevelDBReopen(t *testing.T) {
	path, err := ioutil.TempDir("", "TestLevelDBReopen")
	if err != nil {
		t.Fatalf("TestLevelDBReopen: TempDir unexpectedly failed: %s", err)
	}
	defer os.RemoveAll(path)

	key := database.MakeBucket([]byte("blockchain_data")).Key([]byte("block_0"))
	ldb, err := NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("TestLevelDBReopen: NewLevelDB unexpectedly failed: %s", err)
	}
	err = ldb.Put(key, []byte("genesis"))
	if err != nil {
		t.Fatalf("TestLevelDBReopen: Put unexpectedly failed: %s", err)
	}
	err = ldb.Close()
	if err != nil {
		t.Fatalf("TestLevelDBReopen: Close unexpectedly failed: %s", err)
	}

	ldb, err = NewLevelDB(path, 8)
	if err != nil {
		t.Fatalf("TestLevelDBReopen: second NewLevelDB unexpectedly failed: %s", err)
	}
	defer ldb.Close()
	value, err := ldb.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBReopen: Get unexpectedly failed: %s", err)
	}
	if string(value) != "genesis" {
		t.Fatalf("TestLevelDBReopen: unexpected value %s", string(value))
	}
}
