package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kaspanet/ledgerd/domain/ledger"
	"github.com/kaspanet/ledgerd/domain/ledger/datastructures/blockstore"
	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/processes/validator"
	"github.com/kaspanet/ledgerd/infrastructure/config"
	"github.com/kaspanet/ledgerd/infrastructure/db/database"
	"github.com/kaspanet/ledgerd/infrastructure/db/database/ldb"
	"github.com/kaspanet/ledgerd/infrastructure/logger"
	"github.com/kaspanet/ledgerd/version"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
)

const (
	databaseCacheSizeMiB = 16

	exitCodeTampered = 2
)

// databaseLockTimeout bounds how long a command waits for another
// ledgerctl process, such as a polling watch, to release the database.
const databaseLockTimeout = 10 * time.Second

func databaseOpener(ledgerFlags *config.LedgerFlags) blockstore.DatabaseOpener {
	databasePath := ledgerFlags.DatabasePath()
	return blockstore.RetryOpen(func() (database.Database, error) {
		db, err := ldb.NewLevelDB(databasePath, databaseCacheSizeMiB)
		if err != nil {
			return nil, errors.Wrapf(err, "failed opening database at %s", databasePath)
		}
		return db, nil
	}, databaseLockTimeout)
}

// openStore opens the block store selected by ledgerFlags. The returned
// teardown closes the store and the database underneath it.
func openStore(ledgerFlags *config.LedgerFlags) (store model.BlockStore, teardown func(), err error) {
	params := ledgerFlags.Params()
	if ledgerFlags.MemDB {
		log.Infof("Keeping the %s chain in memory", params.Name)
		memoryStore := blockstore.NewMemoryStore()
		return memoryStore, memoryStore.Close, nil
	}

	log.Infof("Loading the %s chain from %s", params.Name, ledgerFlags.DatabasePath())
	db, err := databaseOpener(ledgerFlags)()
	if err != nil {
		return nil, nil, err
	}
	databaseStore, err := blockstore.NewDatabaseStore(db, params.Collection, blockstore.DefaultCacheSize)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	teardown = func() {
		databaseStore.Close()
		err := db.Close()
		if err != nil {
			log.Errorf("Error closing the database: %s", err)
		}
	}
	return databaseStore, teardown, nil
}

// openPollingStore opens a store that only holds the database while
// reading or writing it, and re-reads it every pollInterval so that
// changes made by other processes are noticed.
func openPollingStore(ledgerFlags *config.LedgerFlags, pollInterval time.Duration) (
	store model.BlockStore, teardown func(), err error) {

	params := ledgerFlags.Params()
	if ledgerFlags.MemDB {
		return openStore(ledgerFlags)
	}

	log.Infof("Polling the %s chain in %s every %s", params.Name, ledgerFlags.DatabasePath(), pollInterval)
	pollingStore, err := blockstore.NewPollingStore(databaseOpener(ledgerFlags), params.Collection,
		blockstore.DefaultCacheSize, pollInterval)
	if err != nil {
		return nil, nil, err
	}
	return pollingStore, pollingStore.Close, nil
}

func openLedger(ledgerFlags *config.LedgerFlags, stdoutLevel logger.Level) (*ledger.Ledger, func(), error) {
	initLog(ledgerFlags, stdoutLevel)
	log.Infof("ledgerctl version %s", version.Version())

	store, teardown, err := openStore(ledgerFlags)
	if err != nil {
		return nil, nil, err
	}
	return newLedger(ledgerFlags, store, teardown)
}

func newLedger(ledgerFlags *config.LedgerFlags, store model.BlockStore, teardown func()) (
	*ledger.Ledger, func(), error) {

	ledgerInstance, err := ledger.New(&ledger.Config{
		Store:  store,
		Params: ledgerFlags.Params(),
	})
	if err != nil {
		teardown()
		return nil, nil, err
	}
	return ledgerInstance, teardown, nil
}

// ensureGenesis bootstraps memory-only chains, which never outlive a single
// command.
func ensureGenesis(ledgerFlags *config.LedgerFlags, ledgerInstance *ledger.Ledger) error {
	if !ledgerFlags.MemDB {
		return nil
	}
	_, err := ledgerInstance.EnsureGenesis()
	return err
}

func printVerdict(result *validator.ValidationResult, blockCount int) {
	if result.IsValid {
		pterm.Success.Printfln("CHAIN SECURE: %d blocks verified", blockCount)
	} else {
		pterm.Error.Printfln("TAMPER DETECTED: %s", result)
	}
	if len(result.BelowDifficulty) > 0 {
		pterm.Warning.Printfln("Blocks at positions %v were sealed below difficulty", result.BelowDifficulty)
	}
}

func printErrorAndExit(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}
