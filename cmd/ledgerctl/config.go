package main

import (
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/ledgerd/infrastructure/config"
	"github.com/pkg/errors"
)

const (
	genesisSubCmd = "genesis"
	mineSubCmd    = "mine"
	verifySubCmd  = "verify"
	showSubCmd    = "show"
	watchSubCmd   = "watch"
	tamperSubCmd  = "tamper"
)

type configFlags struct {
	config.LedgerFlags
}

type genesisConfig struct {
	config.LedgerFlags
}

type mineConfig struct {
	Sender   string `long:"sender" short:"s" description:"The sender of the transaction" required:"true"`
	Receiver string `long:"receiver" short:"r" description:"The receiver of the transaction" required:"true"`
	Item     string `long:"item" short:"i" description:"The item being transferred" required:"true"`
	Amount   string `long:"amount" short:"a" description:"A non-negative decimal amount (e.g. 1234.5)"`
	Method   string `long:"method" short:"m" description:"How the item is transferred"`
	config.LedgerFlags
}

type verifyConfig struct {
	config.LedgerFlags
}

type showConfig struct {
	config.LedgerFlags
}

type watchConfig struct {
	PollInterval time.Duration `long:"poll-interval" default:"1s" description:"How often to re-read the chain database for changes made by other processes"`
	config.LedgerFlags
}

type tamperConfig struct {
	Index uint64 `long:"index" description:"The index of the block to rewrite" required:"true"`
	Field string `long:"field" short:"f" description:"The payload field to overwrite" default:"item"`
	Value string `long:"value" short:"v" description:"The new value of the field" required:"true"`
	config.LedgerFlags
}

func parseCommandLine() (subCommand string, subConfig interface{}) {
	cfg := &configFlags{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)

	genesisConf := &genesisConfig{}
	parser.AddCommand(genesisSubCmd, "Creates the genesis block",
		"Mines and stores the genesis block unless the chain already has one", genesisConf)

	mineConf := &mineConfig{}
	parser.AddCommand(mineSubCmd, "Appends a transaction to the chain",
		"Mines a block carrying the given transaction on top of the chain tail", mineConf)

	verifyConf := &verifyConfig{}
	parser.AddCommand(verifySubCmd, "Verifies the integrity of the chain",
		"Verifies the integrity of the chain. Exits with status 2 if the chain was tampered with", verifyConf)

	showConf := &showConfig{}
	parser.AddCommand(showSubCmd, "Shows the chain",
		"Prints every block of the chain along with the integrity verdict", showConf)

	watchConf := &watchConfig{}
	parser.AddCommand(watchSubCmd, "Watches the chain",
		"Re-verifies the chain every time it changes, until interrupted", watchConf)

	tamperConf := &tamperConfig{}
	parser.AddCommand(tamperSubCmd, "Rewrites a stored block without re-mining it",
		"Overwrites a payload field of a stored block, to demonstrate tamper detection", tamperConf)

	_, err := parser.Parse()

	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		} else {
			os.Exit(1)
		}
		return "", nil
	}

	var ledgerFlags *config.LedgerFlags
	switch parser.Command.Active.Name {
	case genesisSubCmd:
		ledgerFlags, subConfig = &genesisConf.LedgerFlags, genesisConf
	case mineSubCmd:
		ledgerFlags, subConfig = &mineConf.LedgerFlags, mineConf
	case verifySubCmd:
		ledgerFlags, subConfig = &verifyConf.LedgerFlags, verifyConf
	case showSubCmd:
		ledgerFlags, subConfig = &showConf.LedgerFlags, showConf
	case watchSubCmd:
		ledgerFlags, subConfig = &watchConf.LedgerFlags, watchConf
	case tamperSubCmd:
		ledgerFlags, subConfig = &tamperConf.LedgerFlags, tamperConf
	}

	config.CombineLedgerFlags(ledgerFlags, &cfg.LedgerFlags)
	err = ledgerFlags.ResolveLedger()
	if err != nil {
		printErrorAndExit(err)
	}

	return parser.Command.Active.Name, subConfig
}
