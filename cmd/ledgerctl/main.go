package main

import (
	"github.com/kaspanet/ledgerd/util/panics"
	"github.com/pkg/errors"
)

func main() {
	defer panics.HandlePanic(log, "MAIN", nil)
	subCmd, config := parseCommandLine()

	var err error
	switch subCmd {
	case genesisSubCmd:
		err = genesis(config.(*genesisConfig))
	case mineSubCmd:
		err = mine(config.(*mineConfig))
	case verifySubCmd:
		err = verify(config.(*verifyConfig))
	case showSubCmd:
		err = show(config.(*showConfig))
	case watchSubCmd:
		err = watch(config.(*watchConfig))
	case tamperSubCmd:
		err = tamper(config.(*tamperConfig))
	default:
		err = errors.Errorf("Unknown sub-command '%s'\n", subCmd)
	}

	if err != nil {
		printErrorAndExit(err)
	}
}
